package cmd

import (
	"fmt"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/projecteru2/podfleet/render"
	"github.com/projecteru2/podfleet/utils"
)

var sshConfigCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh-config",
		Short: "Print an SSH client config for the fleet",
		Long: `Print an SSH client config for the fleet.

By default every pod with a public SSH endpoint gets a host block pointing at
it directly. With --proxy the config instead routes every allow-listed machine
through the proxy host on its stable listen port; no provider call is made.`,
		Args: cobra.NoArgs,
		RunE: runSSHConfig,
	}
	cmd.Flags().Bool("proxy", false, "render the proxy-side config")
	cmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolP("verbose", "v", false, "log progress")
	return cmd
}()

func runSSHConfig(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	logger := log.WithFunc("cmd.ssh-config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	viaProxy, _ := cmd.Flags().GetBool("proxy")

	var text string
	if viaProxy {
		reg, err := initRegistry()
		if err != nil {
			return err
		}
		text = render.ProxySSHConfig(reg, conf.ProxyBasePort, render.ProxySSHOptions{
			User:         conf.SSHUser,
			Host:         conf.SSHHost,
			IdentityFile: conf.SSHKeyPath,
		})
	} else {
		p, err := initProvider()
		if err != nil {
			return err
		}
		if verbose {
			logger.Infof(ctx, "fetching pods")
		}
		pods, err := listPods(ctx, p)
		if err != nil {
			return err
		}
		if len(pods) == 0 {
			logger.Warnf(ctx, "no pods found")
		}
		text = render.SSHConfig(pods, render.SSHOptions{
			Prefix:       conf.Prefix,
			User:         conf.SSHUser,
			IdentityFile: conf.SharedSSHKeyPath,
		})
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := utils.AtomicWriteFile(utils.ExpandHome(output), []byte(text), 0o600); err != nil { //nolint:mnd
		return err
	}
	logger.Infof(ctx, "wrote %s", output)
	return nil
}
