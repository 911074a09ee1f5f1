// Package endpoint resolves the public SSH endpoint of observed pods.
//
// A pod without a public tcp binding is still booting (or has no SSH
// exposed). That is a normal transient state and is reported as "not
// found", never as an error.
package endpoint

import "github.com/projecteru2/podfleet/types"

// Resolve returns the first runtime port binding that is tcp and public.
func Resolve(pod types.Pod) (types.Endpoint, bool) {
	for _, b := range pod.RuntimePorts {
		if b.Protocol == types.ProtocolTCP && b.IsPublic && b.IP != "" && b.Port > 0 {
			return types.Endpoint{IP: b.IP, Port: b.Port}, true
		}
	}
	return types.Endpoint{}, false
}

// ResolveAll resolves every pod, keyed by pod name. Pods without an
// endpoint are absent from the result.
func ResolveAll(pods []types.Pod) map[string]types.Endpoint {
	out := make(map[string]types.Endpoint, len(pods))
	for _, p := range pods {
		if ep, ok := Resolve(p); ok {
			out[p.Name] = ep
		}
	}
	return out
}
