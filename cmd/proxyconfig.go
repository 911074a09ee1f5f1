package cmd

import (
	"fmt"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/provider"
	"github.com/projecteru2/podfleet/proxy"
	"github.com/projecteru2/podfleet/render"
)

var proxyConfigCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy-config",
		Short: "Render the nginx stream config that routes SSH to each machine",
		Long: `Render the nginx stream config that routes SSH to each machine.

Each allow-listed machine listens on base port + its position in the list, so
ports stay the same when pods are recreated. Prints to stdout unless --write.`,
		Args: cobra.NoArgs,
		RunE: runProxyConfig,
	}
	cmd.Flags().Bool("write", false, "write the config file instead of printing it")
	cmd.Flags().Bool("reload", false, "reload the proxy daemon after writing, even if unchanged")
	cmd.Flags().String("path", "", "config file path for --write")
	cmd.Flags().BoolP("verbose", "v", false, "also print the pod table to stderr")
	_ = viper.BindPFlag("proxy.config_path", cmd.Flags().Lookup("path"))
	return cmd
}()

func runProxyConfig(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	p, err := initProvider()
	if err != nil {
		return err
	}
	reg, err := initRegistry()
	if err != nil {
		return err
	}
	pods, err := listPods(ctx, p)
	if err != nil {
		return err
	}
	opts := render.NginxOptions{AccessLog: conf.Proxy.AccessLog, ErrorLog: conf.Proxy.ErrorLog}

	write, _ := cmd.Flags().GetBool("write")
	if !write {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), render.ProxyConfig(pods, reg, conf.ProxyBasePort, opts)); err != nil {
			return err
		}
	} else {
		reload, _ := cmd.Flags().GetBool("reload")
		opts.Header = true
		r := newRefresher(p, reg, opts)
		r.ForceReload = reload
		res, err := r.Apply(ctx, pods)
		if err != nil {
			return err
		}
		log.WithFunc("cmd.proxy-config").Infof(ctx, "%d routes, changed=%t, reloaded=%t", len(res.Routes), res.Changed, res.Reloaded)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return render.PodTable(cmd.ErrOrStderr(), pods, time.Now())
	}
	return nil
}

// newRefresher wires the proxy refresh to the configured path and reload command.
func newRefresher(p provider.Provider, reg *naming.Registry, opts render.NginxOptions) *proxy.Refresher {
	return &proxy.Refresher{
		Provider: p,
		Registry: reg,
		BasePort: conf.ProxyBasePort,
		Path:     conf.Proxy.ConfigPath,
		Options:  opts,
		Reloader: proxy.CommandReloader{Argv: conf.Proxy.ReloadCommand},
	}
}
