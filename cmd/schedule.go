package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projecteru2/podfleet/render"
	"github.com/projecteru2/podfleet/schedule"
)

var scheduleCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run time-triggered fleet commands",
	}
	cmd.PersistentFlags().String("schedule", "", "schedule file (JSON or YAML)")
	_ = viper.BindPFlag("schedule.file", cmd.PersistentFlags().Lookup("schedule"))
	cmd.AddCommand(scheduleRunCmd, scheduleCheckCmd)
	return cmd
}()

var scheduleRunCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fire the rules due this minute (run once per minute from cron or a systemd timer)",
		Args:  cobra.NoArgs,
		RunE:  runSchedule,
	}
	cmd.Flags().Bool("dry-run", false, "log what would run without executing")
	cmd.Flags().String("state", "", "state file recording fired rules; enables once-per-minute firing")
	_ = viper.BindPFlag("schedule.state_file", cmd.Flags().Lookup("state"))
	return cmd
}()

var scheduleCheckCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the schedule and show which rules fire at a given time",
		Args:  cobra.NoArgs,
		RunE:  runScheduleCheck,
	}
	cmd.Flags().String("at", "", "evaluation time, RFC3339 (default now)")
	return cmd
}()

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	logger := log.WithFunc("cmd.schedule")
	f, err := schedule.Load(conf.Schedule.File)
	if errors.Is(err, schedule.ErrNoSchedule) {
		logger.Infof(ctx, "%v, nothing to do", err)
		return nil
	}
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	r := &schedule.Runner{
		Rules: f.Schedules,
		Dispatcher: schedule.ShellDispatcher{
			WorkDir: conf.Schedule.WorkDir,
			Timeout: time.Duration(conf.Schedule.CommandTimeoutSeconds) * time.Second,
		},
		Refresher: schedule.RefreshFunc(refreshProxy),
		DryRun:    dryRun,
	}
	if conf.Schedule.StateFile != "" {
		r.State = schedule.NewStateStore(conf.Schedule.StateFile)
	}
	rep, err := r.Tick(ctx, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Executed %d tasks (%d failed)\n", rep.Executed, rep.Failed)
	return err
}

// refreshProxy rebuilds the proxy config from fresh provider state.
// Credentials are only required once a refresh is actually needed.
func refreshProxy(ctx context.Context) error {
	p, err := initProvider()
	if err != nil {
		return err
	}
	reg, err := initRegistry()
	if err != nil {
		return err
	}
	opts := render.NginxOptions{AccessLog: conf.Proxy.AccessLog, ErrorLog: conf.Proxy.ErrorLog, Header: true}
	res, err := newRefresher(p, reg, opts).Refresh(ctx)
	if err != nil {
		return err
	}
	log.WithFunc("cmd.refreshProxy").Infof(ctx, "proxy config: %d routes, changed=%t", len(res.Routes), res.Changed)
	return nil
}

func runScheduleCheck(cmd *cobra.Command, _ []string) error {
	f, err := schedule.Load(conf.Schedule.File)
	if err != nil {
		return err
	}
	now := time.Now()
	if at, _ := cmd.Flags().GetString("at"); at != "" {
		if now, err = time.Parse(time.RFC3339, at); err != nil {
			return fmt.Errorf("invalid --at %q: %w", at, err)
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "# %s (%s UTC)\n", now.UTC().Format(time.RFC3339), now.UTC().Weekday())
	_, _ = fmt.Fprintln(w, "NAME\tTIME\tDAYS\tENABLED\tDECISION\tMUTATING\tCOMMAND")
	for _, d := range schedule.Evaluate(f.Schedules, now) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%t\t%s\t%t\t%s\n",
			d.Rule.Name,
			d.Rule.Time,
			d.Rule.Days,
			d.Rule.IsEnabled(),
			d.State,
			schedule.IsMutating(d.Rule.Command),
			d.Rule.Command,
		)
	}
	return w.Flush()
}
