// Package render produces the text artifacts derived from fleet state: SSH
// client configs and the nginx stream config of the SSH proxy host.
//
// Every renderer is a pure function of its input and iterates in a sorted
// or allow-list order, so identical input always yields identical bytes.
package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/projecteru2/podfleet/endpoint"
	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/types"
)

const indent = "    "

// SSHOptions configures the direct SSH config.
type SSHOptions struct {
	Prefix       string
	User         string
	IdentityFile string
}

// ProxySSHOptions configures the SSH config for reaching machines through the proxy host.
type ProxySSHOptions struct {
	User         string
	Host         string
	IdentityFile string
}

// SSHConfig renders a wildcard block for the prefix followed by one host
// block per pod with a resolvable endpoint, sorted by pod name. Pods still
// booting are omitted.
func SSHConfig(pods []types.Pod, opts SSHOptions) string {
	var b strings.Builder
	writeWildcard(&b, opts.Prefix, opts.User, "", opts.IdentityFile)

	for _, p := range sortedPods(pods) {
		ep, ok := endpoint.Resolve(p)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\nHost %s\n", p.Name)
		fmt.Fprintf(&b, "%sHostName %s\n", indent, ep.IP)
		fmt.Fprintf(&b, "%sPort %d\n", indent, ep.Port)
	}
	return b.String()
}

// ProxySSHConfig renders the config a client uses to reach every
// allow-listed machine through the proxy host. It needs no provider state:
// each machine's port is basePort plus its allow-list index.
func ProxySSHConfig(reg *naming.Registry, basePort int, opts ProxySSHOptions) string {
	var b strings.Builder
	writeWildcard(&b, reg.Prefix(), opts.User, opts.Host, opts.IdentityFile)

	for i, short := range reg.Machines() {
		fmt.Fprintf(&b, "\nHost %s\n", reg.PodName(short))
		fmt.Fprintf(&b, "%sPort %d\n", indent, basePort+i)
	}
	return b.String()
}

func writeWildcard(b *strings.Builder, prefix, user, hostName, identityFile string) {
	fmt.Fprintf(b, "Host %s*\n", prefix)
	if user != "" {
		fmt.Fprintf(b, "%sUser %s\n", indent, user)
	}
	if hostName != "" {
		fmt.Fprintf(b, "%sHostName %s\n", indent, hostName)
	}
	b.WriteString(indent + "StrictHostKeyChecking no\n")
	b.WriteString(indent + "UserKnownHostsFile /dev/null\n")
	if identityFile != "" {
		fmt.Fprintf(b, "%sIdentityFile %s\n", indent, identityFile)
	}
}

// sortedPods returns a copy ordered by name, then id.
func sortedPods(pods []types.Pod) []types.Pod {
	out := slices.Clone(pods)
	slices.SortStableFunc(out, func(a, b types.Pod) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
