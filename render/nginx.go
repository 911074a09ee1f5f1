package render

import (
	"fmt"
	"strings"

	"github.com/projecteru2/podfleet/endpoint"
	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/types"
)

const sshLogFormat = `log_format ssh '$remote_addr [$time_local] $protocol $status $bytes_sent $bytes_received $session_time "$upstream_addr"';`

// NginxOptions controls the preamble of the stream config. Empty log paths
// drop the corresponding directives.
type NginxOptions struct {
	AccessLog string
	ErrorLog  string
	Header    bool
}

// Routes maps every allow-listed machine that has a resolvable pod to its
// upstream and listen port, in allow-list order. The listen port depends
// only on the machine's allow-list position, so a recreated pod keeps its
// port and only the upstream changes.
//
// If several pods carry the same name, the first resolvable one by id wins.
func Routes(pods []types.Pod, reg *naming.Registry, basePort int) []types.ProxyRoute {
	byName := map[string]types.Endpoint{}
	for _, p := range sortedPods(pods) {
		if _, seen := byName[p.Name]; seen {
			continue
		}
		if ep, ok := endpoint.Resolve(p); ok {
			byName[p.Name] = ep
		}
	}

	var routes []types.ProxyRoute
	for i, short := range reg.Machines() {
		ep, ok := byName[reg.PodName(short)]
		if !ok {
			continue
		}
		routes = append(routes, types.ProxyRoute{
			MachineShortName: short,
			UpstreamIP:       ep.IP,
			UpstreamPort:     ep.Port,
			ListenPort:       basePort + i,
		})
	}
	return routes
}

// NginxStream renders routes as an nginx stream-context fragment: one
// upstream and one server per route.
func NginxStream(routes []types.ProxyRoute, opts NginxOptions) string {
	var b strings.Builder
	if opts.Header {
		b.WriteString("# SSH proxy routes, generated by podfleet. Manual edits are overwritten.\n\n")
	}
	if opts.AccessLog != "" {
		b.WriteString(sshLogFormat + "\n")
		fmt.Fprintf(&b, "access_log %s ssh;\n", opts.AccessLog)
	}
	if opts.ErrorLog != "" {
		fmt.Fprintf(&b, "error_log %s;\n", opts.ErrorLog)
	}
	if opts.AccessLog != "" || opts.ErrorLog != "" {
		b.WriteString("\n")
	}

	for _, r := range routes {
		fmt.Fprintf(&b, "upstream %s { server %s:%d; }\n", r.MachineShortName, r.UpstreamIP, r.UpstreamPort)
		fmt.Fprintf(&b, "server { listen %d; proxy_pass %s; }\n\n", r.ListenPort, r.MachineShortName)
	}
	return b.String()
}

// ProxyConfig is Routes followed by NginxStream.
func ProxyConfig(pods []types.Pod, reg *naming.Registry, basePort int, opts NginxOptions) string {
	return NginxStream(Routes(pods, reg, basePort), opts)
}
