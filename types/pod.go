package types

import (
	"strings"
	"time"
)

// PodStatus is the provider-reported desired status of a pod.
type PodStatus string

// Other values the provider reports are carried through verbatim.
const (
	PodStatusRunning PodStatus = "RUNNING"
	PodStatusExited  PodStatus = "EXITED"
)

// Protocol is the exposure type of a pod port: "tcp" or "http".
type Protocol string

const ProtocolTCP Protocol = "tcp"

// PortBinding is one runtime port mapping reported for a pod.
type PortBinding struct {
	IP          string   `json:"ip"`
	IsPublic    bool     `json:"is_public"`
	Port        int      `json:"port"` // public port
	PrivatePort int      `json:"private_port,omitempty"`
	Protocol    Protocol `json:"protocol"`
}

// Pod is the observed record of a provider pod. It is always fetched fresh
// from the provider and never cached across invocations.
type Pod struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	DesiredStatus    PodStatus     `json:"desired_status"`
	CostPerHr        float64       `json:"cost_per_hr"`
	LastStatusChange string        `json:"last_status_change"`
	GPUDisplayName   string        `json:"gpu_display_name,omitempty"`
	GPUCount         int           `json:"gpu_count"`
	ImageName        string        `json:"image_name,omitempty"`
	RuntimePorts     []PortBinding `json:"runtime_ports,omitempty"`
}

// statusChangeLayout matches the JavaScript Date string the provider embeds
// in lastStatusChange, e.g. "Fri Apr 04 2025 10:00:00 GMT+0000".
const statusChangeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700"

// StatusReason returns the text before ": " in LastStatusChange
// ("Rented by User", "Exited by User", ...), or the whole value.
func (p *Pod) StatusReason() string {
	reason, _, found := strings.Cut(p.LastStatusChange, ": ")
	if !found {
		return p.LastStatusChange
	}
	return reason
}

// StatusChangedAt parses the timestamp part of LastStatusChange.
// Returns the zero time if the value is not in the expected form.
func (p *Pod) StatusChangedAt() time.Time {
	_, raw, found := strings.Cut(p.LastStatusChange, ": ")
	if !found {
		return time.Time{}
	}
	raw, _, _ = strings.Cut(raw, " (")
	t, err := time.Parse(statusChangeLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// IsRunning reports whether the pod is desired RUNNING.
func (p *Pod) IsRunning() bool { return p.DesiredStatus == PodStatusRunning }

// IsExited reports whether the pod is stopped (desired EXITED).
func (p *Pod) IsExited() bool { return p.DesiredStatus == PodStatusExited }
