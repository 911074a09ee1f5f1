package render

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"

	"github.com/projecteru2/podfleet/endpoint"
	"github.com/projecteru2/podfleet/types"
)

const maxImageWidth = 29

// PodTable writes a human-readable pod listing, sorted by name. Age columns
// are relative to now.
func PodTable(w io.Writer, pods []types.Pod, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSTATUS\tREASON\tCHANGED\tIP\tSSH PORT\tCOST/HR\tGPUS\tGPU TYPE\tIMAGE")
	for _, p := range sortedPods(pods) {
		ip, port := "-", "-"
		if ep, ok := endpoint.Resolve(p); ok {
			ip, port = ep.IP, strconv.Itoa(ep.Port)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t$%.3f\t%s\t%s\t%s\n",
			p.Name,
			p.DesiredStatus,
			orDash(p.StatusReason()),
			changedAgo(p, now),
			ip,
			port,
			p.CostPerHr,
			gpuCount(p.GPUCount),
			orDash(p.GPUDisplayName),
			truncate(orDash(p.ImageName), maxImageWidth),
		)
	}
	return tw.Flush()
}

func changedAgo(p types.Pod, now time.Time) string {
	t := p.StatusChangedAt()
	if t.IsZero() || t.After(now) {
		return "-"
	}
	return units.HumanDuration(now.Sub(t)) + " ago"
}

func gpuCount(n int) string {
	if n <= 0 {
		return "0"
	}
	return strconv.Itoa(n) + "x"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
