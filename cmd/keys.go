package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/projecteru2/podfleet/config"
	"github.com/projecteru2/podfleet/remote"
)

var keysCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys on pods",
	}
	cmd.AddCommand(keysDeployCmd)
	return cmd
}()

var keysDeployCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Append API key exports to shell rc files on each host",
		Long: `Append API key exports to shell rc files on each host.

Each source maps an environment variable to a "hostname,key" CSV file. Hosts
are reached with the ssh client, so pod names work once the fleet SSH config
is installed. Lines are appended on every run.`,
		Args: cobra.NoArgs,
		RunE: runKeysDeploy,
	}
	cmd.Flags().StringToString("source", nil, "ENV_VAR=keys.csv, replaces configured sources")
	return cmd
}()

func runKeysDeploy(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	sources := conf.Keys.EnvSources()
	if override, _ := cmd.Flags().GetStringToString("source"); len(override) > 0 {
		sources = config.KeysConfig{Sources: override}.EnvSources()
	}
	if len(sources) == 0 {
		return fmt.Errorf("no key sources configured")
	}

	d := &remote.Deployer{
		Runner:  remote.NewSSH(conf.SSHBinary, time.Duration(conf.RemoteTimeoutSeconds)*time.Second),
		RCFiles: conf.Keys.RCFiles,
	}
	s, err := d.Deploy(ctx, sources)
	if _, perr := fmt.Fprintln(cmd.OutOrStdout(), s.String()); perr != nil {
		return perr
	}
	return err
}
