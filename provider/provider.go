package provider

import (
	"context"
	"errors"

	"github.com/projecteru2/podfleet/types"
)

var (
	// ErrUnauthorized means the provider rejected the credentials. It is
	// fatal for the whole run, never a per-pod failure.
	ErrUnauthorized = errors.New("provider rejected credentials")
	ErrNotFound     = errors.New("pod not found")
)

// CreateRequest is one pod creation call.
type CreateRequest struct {
	Name     string
	Template types.FleetTemplate
	Env      map[string]string
}

// Provider is the cloud pod-lifecycle API. Implementations translate their
// wire records into types.Pod at a single point.
type Provider interface {
	Type() string

	ListPods(ctx context.Context) ([]types.Pod, error)
	CreatePod(ctx context.Context, req CreateRequest) (*types.Pod, error)
	StopPod(ctx context.Context, id string) error
	TerminatePod(ctx context.Context, id string) error
}

// IsFatal reports whether err must abort the current batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled)
}
