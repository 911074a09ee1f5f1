package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
	"golang.org/x/time/rate"

	"github.com/projecteru2/podfleet/provider"
	"github.com/projecteru2/podfleet/types"
)

// Summary reports the outcome of one batch. Per-item failures are counted
// here and never escalate to a process failure.
type Summary struct {
	Op        string
	Requested int
	Skipped   []string
	Succeeded []string
	Failed    []string
	Err       error // per-item errors, joined
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: requested=%d skipped=%d succeeded=%d failed=%d",
		s.Op, s.Requested, len(s.Skipped), len(s.Succeeded), len(s.Failed))
}

// Executor applies plans against a provider, one pod at a time, with a fixed
// minimum interval between provider calls.
type Executor struct {
	provider       provider.Provider
	createInterval time.Duration
	actionInterval time.Duration
}

// NewExecutor creates an Executor. Zero intervals disable throttling.
func NewExecutor(p provider.Provider, createInterval, actionInterval time.Duration) *Executor {
	return &Executor{provider: p, createInterval: createInterval, actionInterval: actionInterval}
}

// Create issues one create call per planned machine. Machines already present
// are reported as skipped.
func (e *Executor) Create(ctx context.Context, plan CreatePlan, tmpl types.FleetTemplate, env map[string]string) (Summary, error) {
	s := Summary{Op: "create", Requested: len(plan.ToCreate) + len(plan.AlreadyExists)}
	for _, id := range plan.AlreadyExists {
		s.Skipped = append(s.Skipped, id.PodName())
	}
	logger := log.WithFunc("reconcile.Create")
	err := e.forEach(ctx, &s, e.createInterval, plan.Names(), func(ctx context.Context, i int) error {
		name := plan.ToCreate[i].PodName()
		logger.Infof(ctx, "creating %s (image %s, %dx %s, %s)", name, tmpl.Image, tmpl.GPUCount, tmpl.GPUType, tmpl.CloudType)
		pod, err := e.provider.CreatePod(ctx, provider.CreateRequest{Name: name, Template: tmpl, Env: env})
		if err != nil {
			return err
		}
		logger.Infof(ctx, "creation initiated for %s (id %s)", name, pod.ID)
		return nil
	})
	return s, err
}

// Stop issues one stop call per pod.
func (e *Executor) Stop(ctx context.Context, pods []types.Pod) (Summary, error) {
	s := Summary{Op: "stop", Requested: len(pods)}
	err := e.forEach(ctx, &s, e.actionInterval, Names(pods), func(ctx context.Context, i int) error {
		return e.provider.StopPod(ctx, pods[i].ID)
	})
	return s, err
}

// Delete issues one terminate call per pod. Callers pass a PlanDelete result,
// so only stopped pods reach here.
func (e *Executor) Delete(ctx context.Context, pods []types.Pod) (Summary, error) {
	s := Summary{Op: "delete", Requested: len(pods)}
	err := e.forEach(ctx, &s, e.actionInterval, Names(pods), func(ctx context.Context, i int) error {
		if pods[i].IsRunning() {
			return fmt.Errorf("refusing to delete running pod")
		}
		return e.provider.TerminatePod(ctx, pods[i].ID)
	})
	return s, err
}

// forEach runs fn for each item sequentially, best effort. Per-item failures
// are logged and recorded in s; a fatal error (auth rejection, cancellation)
// stops the batch and is returned.
func (e *Executor) forEach(ctx context.Context, s *Summary, interval time.Duration, names []string, fn func(context.Context, int) error) error {
	logger := log.WithFunc("reconcile." + s.Op)
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var errs []error
	defer func() { s.Err = errors.Join(errs...) }()

	for i, name := range names {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s interrupted before %s: %w", s.Op, name, err)
		}
		err := fn(ctx, i)
		if err == nil {
			logger.Infof(ctx, "%s %s: ok", s.Op, name)
			s.Succeeded = append(s.Succeeded, name)
			continue
		}
		s.Failed = append(s.Failed, name)
		errs = append(errs, fmt.Errorf("pod %s: %w", name, err))
		if provider.IsFatal(err) {
			return fmt.Errorf("%s aborted at %s: %w", s.Op, name, err)
		}
		logger.Warnf(ctx, "%s pod %s: %v", s.Op, name, err)
	}
	return nil
}

// FailedNames formats failed pod names for user output.
func (s Summary) FailedNames() string { return strings.Join(s.Failed, ", ") }
