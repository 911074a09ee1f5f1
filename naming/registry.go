package naming

import (
	"errors"
	"fmt"
	"strings"

	"github.com/projecteru2/podfleet/types"
)

var (
	ErrEmptyPrefix   = errors.New("machine name prefix is empty")
	ErrDuplicateName = errors.New("duplicate machine name")
)

// Registry maps the ordered allow-list of short machine names onto pod names.
// Position in the allow-list is significant: proxy listen ports derive from it.
type Registry struct {
	prefix   string
	machines []string
	index    map[string]int
}

// New builds a Registry. Short names must be unique and non-empty.
func New(prefix string, machines []string) (*Registry, error) {
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	r := &Registry{
		prefix:   prefix,
		machines: make([]string, 0, len(machines)),
		index:    make(map[string]int, len(machines)),
	}
	for _, m := range machines {
		m = strings.TrimSpace(m)
		if m == "" {
			return nil, fmt.Errorf("empty machine name at position %d", len(r.machines))
		}
		if _, ok := r.index[m]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, m)
		}
		r.index[m] = len(r.machines)
		r.machines = append(r.machines, m)
	}
	return r, nil
}

// PodName returns "{prefix}-{shortName}".
func PodName(prefix, shortName string) string {
	return types.MachineIdentity{Prefix: prefix, ShortName: shortName}.PodName()
}

func (r *Registry) Prefix() string { return r.prefix }

// Machines returns a copy of the allow-list in its configured order.
func (r *Registry) Machines() []string {
	return append([]string(nil), r.machines...)
}

func (r *Registry) Len() int { return len(r.machines) }

// PodName returns the pod name for shortName under this registry's prefix.
func (r *Registry) PodName(shortName string) string { return PodName(r.prefix, shortName) }

// IsAllowed reports whether shortName is in the allow-list.
func (r *Registry) IsAllowed(shortName string) bool {
	_, ok := r.index[shortName]
	return ok
}

// Index returns the allow-list position of shortName.
func (r *Registry) Index(shortName string) (int, bool) {
	i, ok := r.index[shortName]
	return i, ok
}

// Identity returns the MachineIdentity for shortName without validating it.
func (r *Registry) Identity(shortName string) types.MachineIdentity {
	return types.MachineIdentity{Prefix: r.prefix, ShortName: shortName}
}

// Identities returns every allow-listed machine, in order.
func (r *Registry) Identities() []types.MachineIdentity {
	out := make([]types.MachineIdentity, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, r.Identity(m))
	}
	return out
}

// ShortName maps a pod name back to its allow-listed short name.
func (r *Registry) ShortName(podName string) (string, bool) {
	short, ok := strings.CutPrefix(podName, r.prefix+"-")
	if !ok || !r.IsAllowed(short) {
		return "", false
	}
	return short, true
}

// Resolve converts caller-supplied names (short names or full pod names) into
// identities. Names outside the allow-list are NOT rejected: they are returned
// as identities and also listed in unknown so the caller can warn that proxy
// and SSH tooling keyed to the allow-list will not pick them up.
func (r *Registry) Resolve(names []string) (ids []types.MachineIdentity, unknown []string) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		short := name
		if s, ok := strings.CutPrefix(name, r.prefix+"-"); ok && s != "" {
			short = s
		}
		if _, dup := seen[short]; dup {
			continue
		}
		seen[short] = struct{}{}
		if !r.IsAllowed(short) {
			unknown = append(unknown, short)
		}
		ids = append(ids, r.Identity(short))
	}
	return ids, unknown
}
