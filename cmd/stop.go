package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projecteru2/podfleet/reconcile"
)

var stopCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop running pods",
		Args:  cobra.NoArgs,
		RunE:  runStop,
	}
	addFilterFlags(cmd)
	addYesFlag(cmd)
	return cmd
}()

func runStop(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	p, err := initProvider()
	if err != nil {
		return err
	}
	pods, err := listPods(ctx, p)
	if err != nil {
		return err
	}
	include, exclude := filterFlags(cmd)
	targets := reconcile.PlanStop(pods, include, exclude)
	if len(targets) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No running pods to stop.")
		return nil
	}
	ok, err := confirm(cmd, "stopped", reconcile.Names(targets))
	if err != nil || !ok {
		return err
	}
	s, err := newExecutor(p).Stop(ctx, targets)
	printSummary(ctx, cmd, s)
	return err
}
