package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/podfleet/utils"
)

// Refresher regenerates downstream config after the fleet changed.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Outcome is the result of one rule at one tick.
type Outcome struct {
	Rule  Rule
	State State
	Err   error
}

// Report summarizes a tick.
type Report struct {
	TickID     string
	Minute     string
	Outcomes   []Outcome
	Executed   int
	Failed     int
	Refreshed  bool
	RefreshErr error
}

func (r Report) String() string {
	return fmt.Sprintf("tick %s at %s: executed=%d failed=%d refreshed=%t", r.TickID, r.Minute, r.Executed, r.Failed, r.Refreshed)
}

// Runner evaluates Rules on each tick and dispatches the matching ones.
type Runner struct {
	Rules      []Rule
	Dispatcher Dispatcher
	// Refresher runs once per tick after any fleet-mutating command fired.
	// Optional.
	Refresher Refresher
	// State de-duplicates firing within a minute. Optional; without it a
	// second tick in the same minute fires again.
	State  *StateStore
	DryRun bool
}

// Tick fires every rule matching now in configuration order. A failing
// command is recorded and the remaining rules still run. Refresh failures
// are logged and reported, never returned. The returned error is non-nil
// only when the state store cannot be used.
func (r *Runner) Tick(ctx context.Context, now time.Time) (Report, error) {
	rep := Report{TickID: utils.NewRunID(), Minute: MinuteKey(now)}
	logger := log.WithFunc("schedule.Tick")

	run := func(fired func(string) bool, mark func(string)) error {
		r.fire(ctx, now, &rep, fired, mark)
		return nil
	}
	if r.State != nil && !r.DryRun {
		if err := r.State.claim(ctx, rep.Minute, run); err != nil {
			return rep, fmt.Errorf("schedule state %s: %w", r.State.Path(), err)
		}
	} else {
		_ = run(func(string) bool { return false }, func(string) {})
	}

	if !needsRefresh(rep) || r.Refresher == nil {
		logger.Infof(ctx, "%s", rep)
		return rep, nil
	}
	if r.DryRun {
		logger.Infof(ctx, "[dry run] would refresh proxy config")
		logger.Infof(ctx, "%s", rep)
		return rep, nil
	}
	if err := r.Refresher.Refresh(ctx); err != nil {
		rep.RefreshErr = err
		logger.Warnf(ctx, "refresh after fleet change failed: %v", err)
	} else {
		rep.Refreshed = true
	}
	logger.Infof(ctx, "%s", rep)
	return rep, nil
}

func (r *Runner) fire(ctx context.Context, now time.Time, rep *Report, fired func(string) bool, mark func(string)) {
	logger := log.WithFunc("schedule.fire")
	for _, d := range Evaluate(r.Rules, now) {
		out := Outcome{Rule: d.Rule, State: d.State}
		switch {
		case d.State != StateFired:
		case fired(d.Rule.Name):
			out.State = StateAlreadyFired
			logger.Infof(ctx, "[%s] %s already fired at %s", rep.TickID, d.Rule.Name, rep.Minute)
		case r.DryRun:
			out.State = StateDryRun
			logger.Infof(ctx, "[%s] [dry run] %s: %s", rep.TickID, d.Rule.Name, d.Rule.Command)
		default:
			mark(d.Rule.Name)
			logger.Infof(ctx, "[%s] executing %s: %s", rep.TickID, d.Rule.Name, d.Rule.Command)
			rep.Executed++
			if err := r.Dispatcher.Dispatch(ctx, d.Rule); err != nil {
				out.Err = err
				rep.Failed++
				logger.Warnf(ctx, "[%s] %s failed: %v", rep.TickID, d.Rule.Name, err)
			}
		}
		rep.Outcomes = append(rep.Outcomes, out)
	}
}

// needsRefresh reports whether a fleet-mutating command fired (or would
// have, in dry run). Failed commands count: they may have partially applied.
func needsRefresh(rep Report) bool {
	for _, o := range rep.Outcomes {
		if (o.State == StateFired || o.State == StateDryRun) && IsMutating(o.Rule.Command) {
			return true
		}
	}
	return false
}
