package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projecteru2/podfleet/reconcile"
)

var deleteCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete",
		Aliases: []string{"rm"},
		Short:   "Terminate stopped pods",
		Long:    "Terminate stopped (EXITED) pods. Running pods are never deleted; stop them first.",
		Args:    cobra.NoArgs,
		RunE:    runDelete,
	}
	addFilterFlags(cmd)
	addYesFlag(cmd)
	return cmd
}()

func runDelete(cmd *cobra.Command, _ []string) error {
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
	targets := reconcile.PlanDelete(pods, include, exclude)
	if len(targets) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No stopped pods to delete.")
		return nil
	}
	ok, err := confirm(cmd, "permanently deleted", reconcile.Names(targets))
	if err != nil || !ok {
		return err
	}
	s, err := newExecutor(p).Delete(ctx, targets)
	printSummary(ctx, cmd, s)
	return err
}
