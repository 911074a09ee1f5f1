package proxy

import (
	"context"
	"fmt"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/podfleet/endpoint"
	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/provider"
	"github.com/projecteru2/podfleet/render"
	"github.com/projecteru2/podfleet/types"
)

// Refresher regenerates the proxy config from fresh provider state.
type Refresher struct {
	Provider provider.Provider
	Registry *naming.Registry
	BasePort int
	Path     string
	Options  render.NginxOptions
	Reloader Reloader
	// ForceReload reloads even when the file content did not change.
	ForceReload bool
}

// Result describes one refresh.
type Result struct {
	Routes   []types.ProxyRoute
	Changed  bool
	Reloaded bool
}

// Refresh lists pods and applies them.
func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	pods, err := r.Provider.ListPods(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list pods: %w", err)
	}
	return r.Apply(ctx, pods)
}

// Apply renders pods and writes the config. The daemon is reloaded unless
// the config on disk is unchanged and already loaded; ForceReload always reloads.
func (r *Refresher) Apply(ctx context.Context, pods []types.Pod) (Result, error) {
	logger := log.WithFunc("proxy.Apply")
	res := Result{Routes: render.Routes(pods, r.Registry, r.BasePort)}
	for _, name := range unrouted(pods, r.Registry) {
		logger.Warnf(ctx, "machine %s has no public tcp endpoint yet, omitted", name)
	}

	changed, err := WriteConfig(ctx, r.Path, render.NginxStream(res.Routes, r.Options))
	if err != nil {
		return res, err
	}
	res.Changed = changed
	if r.Reloader == nil {
		return res, nil
	}
	pending := reloadPending(r.Path)
	if !changed && !pending && !r.ForceReload {
		return res, nil
	}
	if pending {
		logger.Warnf(ctx, "previous reload of %s did not complete, retrying", r.Path)
	}
	if err := setReloadPending(r.Path); err != nil {
		return res, err
	}
	if err := r.Reloader.Reload(ctx); err != nil {
		return res, err
	}
	if err := clearReloadPending(r.Path); err != nil {
		logger.Warnf(ctx, "clear reload marker: %v", err)
	}
	res.Reloaded = true
	logger.Infof(ctx, "proxy reloaded with %d routes", len(res.Routes))
	return res, nil
}

// unrouted lists allow-listed machines that have a pod but none of their
// pods exposes an endpoint yet.
func unrouted(pods []types.Pod, reg *naming.Registry) []string {
	resolved := endpoint.ResolveAll(pods)
	var out []string
	seen := map[string]bool{}
	for _, p := range pods {
		short, ok := reg.ShortName(p.Name)
		if _, has := resolved[p.Name]; !ok || has || seen[short] {
			continue
		}
		seen[short] = true
		out = append(out, short)
	}
	return out
}
