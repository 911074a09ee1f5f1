package cmd

import (
	"context"
	"fmt"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/reconcile"
	"github.com/projecteru2/podfleet/types"
)

var createCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [flags] [MACHINE...]",
		Short: "Create pods for machines that do not exist yet",
		Long: `Create pods for machines that do not exist yet.

With no arguments every allow-listed machine is ensured. --count N ensures the
first N allow-listed machines, --add N creates the next N unused ones. Machine
names outside the allow-list are created but get no proxy or SSH config entry.
Existing pods are always skipped.`,
		RunE: runCreate,
	}
	cmd.Flags().Int("count", 0, "ensure the first N allow-listed machines exist")
	cmd.Flags().Int("add", 0, "create N more machines from the unused allow-list names")
	cmd.Flags().String("gpu-type", "", "GPU type id")
	cmd.Flags().Int("gpu-count", 0, "GPUs per pod")
	cmd.Flags().String("image", "", "container image")
	cmd.Flags().String("cloud-type", "", "COMMUNITY or SECURE")
	addYesFlag(cmd)
	cmd.MarkFlagsMutuallyExclusive("count", "add")

	_ = viper.BindPFlag("template.gpu_type", cmd.Flags().Lookup("gpu-type"))
	_ = viper.BindPFlag("template.gpu_count", cmd.Flags().Lookup("gpu-count"))
	_ = viper.BindPFlag("template.image", cmd.Flags().Lookup("image"))
	_ = viper.BindPFlag("template.cloud_type", cmd.Flags().Lookup("cloud-type"))
	return cmd
}()

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	logger := log.WithFunc("cmd.create")
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
	logger.Infof(ctx, "found %d existing pods", len(pods))

	count, _ := cmd.Flags().GetInt("count")
	add, _ := cmd.Flags().GetInt("add")
	machines, err := desiredMachines(ctx, reg, pods, args, count, add)
	if err != nil {
		return err
	}
	fleet := types.DesiredFleet{Machines: machines, Template: conf.Template}

	plan := reconcile.PlanCreate(fleet.Machines, pods)
	for _, id := range plan.AlreadyExists {
		logger.Infof(ctx, "skipping %s: pod already exists", id.PodName())
	}
	if len(plan.ToCreate) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to create.")
		return nil
	}
	ok, err := confirm(cmd, "created", plan.Names())
	if err != nil || !ok {
		return err
	}

	fleet.Template.SSHPublicKey = readPublicKey(ctx)
	s, err := newExecutor(p).Create(ctx, plan, fleet.Template, nil)
	printSummary(ctx, cmd, s)
	if err != nil {
		return err
	}
	logger.Infof(ctx, "pods may take a few minutes to become reachable")
	return nil
}

// desiredMachines turns the create arguments into an ordered machine set.
func desiredMachines(ctx context.Context, reg *naming.Registry, pods []types.Pod, args []string, count, add int) ([]types.MachineIdentity, error) {
	switch {
	case len(args) > 0 && (count > 0 || add > 0):
		return nil, fmt.Errorf("machine names cannot be combined with --count or --add")
	case add > 0:
		return reconcile.PlanAddN(add, reg, pods)
	case count > 0:
		if count > reg.Len() {
			return nil, fmt.Errorf("--count %d exceeds the %d allow-listed machines", count, reg.Len())
		}
		return reg.Identities()[:count], nil
	case len(args) > 0:
		ids, unknown := reg.Resolve(args)
		for _, name := range unknown {
			log.WithFunc("cmd.create").Warnf(ctx, "%s is not in the machine allow-list; proxy and SSH configs will not include it", name)
		}
		return ids, nil
	default:
		if reg.Len() == 0 {
			return nil, fmt.Errorf("machine_name_list is empty: pass machine names or configure the allow-list")
		}
		return reg.Identities(), nil
	}
}
