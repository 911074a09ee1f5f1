package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/projecteru2/podfleet/render"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List pods with status, endpoint and cost",
	RunE:    runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	p, err := initProvider()
	if err != nil {
		return err
	}
	pods, err := listPods(ctx, p)
	if err != nil {
		return err
	}
	if len(pods) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No pods found.")
		return nil
	}
	return render.PodTable(cmd.OutOrStdout(), pods, time.Now())
}
