package endpoint

import (
	"testing"

	"github.com/projecteru2/podfleet/types"
)

func TestResolve_FirstPublicTCP(t *testing.T) {
	pod := types.Pod{Name: "arena-alpha", RuntimePorts: []types.PortBinding{
		{IP: "10.0.0.2", IsPublic: false, Port: 22, Protocol: types.ProtocolTCP},
		{IP: "100.0.0.1", IsPublic: true, Port: 8888, Protocol: types.Protocol("http")},
		{IP: "1.2.3.4", IsPublic: true, Port: 22001, Protocol: types.ProtocolTCP},
		{IP: "5.6.7.8", IsPublic: true, Port: 22002, Protocol: types.ProtocolTCP},
	}}
	ep, ok := Resolve(pod)
	if !ok {
		t.Fatal("expected an endpoint")
	}
	if ep.IP != "1.2.3.4" || ep.Port != 22001 {
		t.Errorf("expected 1.2.3.4:22001, got %s:%d", ep.IP, ep.Port)
	}
}

func TestResolve_NoEndpointIsNotAnError(t *testing.T) {
	cases := []types.Pod{
		{Name: "booting"},
		{Name: "private-only", RuntimePorts: []types.PortBinding{{IP: "10.0.0.1", Port: 22, Protocol: types.ProtocolTCP}}},
		{Name: "http-only", RuntimePorts: []types.PortBinding{{IP: "1.1.1.1", IsPublic: true, Port: 80, Protocol: types.Protocol("http")}}},
	}
	for _, pod := range cases {
		if _, ok := Resolve(pod); ok {
			t.Errorf("%s: expected no endpoint", pod.Name)
		}
	}
}

func TestResolveAll(t *testing.T) {
	pods := []types.Pod{
		{Name: "a", RuntimePorts: []types.PortBinding{{IP: "1.1.1.1", IsPublic: true, Port: 1, Protocol: types.ProtocolTCP}}},
		{Name: "b"},
	}
	got := ResolveAll(pods)
	if len(got) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(got))
	}
	if got["a"].IP != "1.1.1.1" {
		t.Errorf("unexpected endpoint %+v", got["a"])
	}
}
