package render

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/types"
)

func sshPod(name, ip string, port int) types.Pod {
	return types.Pod{
		ID:            "id-" + name,
		Name:          name,
		DesiredStatus: types.PodStatusRunning,
		RuntimePorts: []types.PortBinding{
			{IP: "10.0.0.1", IsPublic: false, Port: 22, Protocol: types.ProtocolTCP},
			{IP: ip, IsPublic: true, Port: port, PrivatePort: 22, Protocol: types.ProtocolTCP},
		},
	}
}

func bootingPod(name string) types.Pod {
	return types.Pod{ID: "id-" + name, Name: name, DesiredStatus: types.PodStatusRunning}
}

func mustRegistry(t *testing.T, machines ...string) *naming.Registry {
	t.Helper()
	reg, err := naming.New("arena", machines)
	if err != nil {
		t.Fatalf("naming.New: %v", err)
	}
	return reg
}

// --- SSHConfig ---

func TestSSHConfig_Golden(t *testing.T) {
	pods := []types.Pod{
		sshPod("arena-charlie", "5.6.7.8", 22002),
		bootingPod("arena-bravo"),
		sshPod("arena-alpha", "1.2.3.4", 22001),
	}
	got := SSHConfig(pods, SSHOptions{Prefix: "arena", User: "root", IdentityFile: "~/.ssh/arena"})
	want := `Host arena*
    User root
    StrictHostKeyChecking no
    UserKnownHostsFile /dev/null
    IdentityFile ~/.ssh/arena

Host arena-alpha
    HostName 1.2.3.4
    Port 22001

Host arena-charlie
    HostName 5.6.7.8
    Port 22002
`
	if got != want {
		t.Errorf("unexpected ssh config:\n%s\nwant:\n%s", got, want)
	}
}

func TestSSHConfig_NoResolvablePods(t *testing.T) {
	got := SSHConfig([]types.Pod{bootingPod("arena-alpha")}, SSHOptions{Prefix: "arena", User: "root"})
	if strings.Contains(got, "Host arena-alpha") {
		t.Errorf("unresolvable pod must be omitted:\n%s", got)
	}
	if !strings.HasPrefix(got, "Host arena*\n") {
		t.Errorf("expected wildcard block, got:\n%s", got)
	}
}

// --- ProxySSHConfig ---

func TestProxySSHConfig_Golden(t *testing.T) {
	reg := mustRegistry(t, "alpha", "bravo")
	got := ProxySSHConfig(reg, 12000, ProxySSHOptions{User: "root", Host: "proxy.example.com", IdentityFile: "~/.ssh/arena"})
	want := `Host arena*
    User root
    HostName proxy.example.com
    StrictHostKeyChecking no
    UserKnownHostsFile /dev/null
    IdentityFile ~/.ssh/arena

Host arena-alpha
    Port 12000

Host arena-bravo
    Port 12001
`
	if got != want {
		t.Errorf("unexpected proxy ssh config:\n%s\nwant:\n%s", got, want)
	}
}

// --- Routes / NginxStream ---

func TestProxyConfig_SingleMachineEndToEnd(t *testing.T) {
	reg := mustRegistry(t, "alpha", "bravo", "charlie")
	pods := []types.Pod{sshPod("arena-bravo", "1.2.3.4", 22001)}

	routes := Routes(pods, reg, 12000)
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}
	want := types.ProxyRoute{MachineShortName: "bravo", UpstreamIP: "1.2.3.4", UpstreamPort: 22001, ListenPort: 12001}
	if routes[0] != want {
		t.Errorf("expected %+v, got %+v", want, routes[0])
	}

	got := ProxyConfig(pods, reg, 12000, NginxOptions{})
	wantConf := "upstream bravo { server 1.2.3.4:22001; }\nserver { listen 12001; proxy_pass bravo; }\n\n"
	if got != wantConf {
		t.Errorf("expected %q, got %q", wantConf, got)
	}
	for _, absent := range []string{"alpha", "charlie"} {
		if strings.Contains(got, absent) {
			t.Errorf("unexpected entry for %s", absent)
		}
	}
}

func TestNginxStream_Preamble(t *testing.T) {
	got := NginxStream(nil, NginxOptions{
		AccessLog: "/var/log/nginx/ssh_access.log",
		ErrorLog:  "/var/log/nginx/ssh_error.log",
	})
	want := sshLogFormat + "\n" +
		"access_log /var/log/nginx/ssh_access.log ssh;\n" +
		"error_log /var/log/nginx/ssh_error.log;\n\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNginxStream_Header(t *testing.T) {
	got := NginxStream(nil, NginxOptions{Header: true})
	if !strings.HasPrefix(got, "# ") {
		t.Errorf("expected comment header, got %q", got)
	}
}

func TestRoutes_ListenPortStableAcrossRecreate(t *testing.T) {
	reg := mustRegistry(t, "alpha", "bravo", "charlie")
	before := Routes([]types.Pod{
		sshPod("arena-alpha", "1.1.1.1", 20000),
		sshPod("arena-charlie", "3.3.3.3", 20002),
	}, reg, 12000)
	// charlie recreated on another host; alpha unchanged; list order differs
	after := Routes([]types.Pod{
		sshPod("arena-charlie", "9.9.9.9", 31337),
		sshPod("arena-alpha", "1.1.1.1", 20000),
	}, reg, 12000)

	listen := func(rs []types.ProxyRoute) map[string]int {
		m := map[string]int{}
		for _, r := range rs {
			m[r.MachineShortName] = r.ListenPort
		}
		return m
	}
	b, a := listen(before), listen(after)
	if b["alpha"] != 12000 || b["charlie"] != 12002 {
		t.Errorf("unexpected listen ports before: %v", b)
	}
	if a["alpha"] != b["alpha"] || a["charlie"] != b["charlie"] {
		t.Errorf("listen ports changed: before %v after %v", b, a)
	}
	if after[1].UpstreamIP != "9.9.9.9" || after[1].UpstreamPort != 31337 {
		t.Errorf("expected new upstream for charlie, got %+v", after[1])
	}
}

func TestRoutes_IgnoresUnlistedAndUnresolvable(t *testing.T) {
	reg := mustRegistry(t, "alpha", "bravo")
	routes := Routes([]types.Pod{
		sshPod("arena-zulu", "1.1.1.1", 1),
		sshPod("other-alpha", "1.1.1.1", 1),
		bootingPod("arena-bravo"),
	}, reg, 12000)
	if len(routes) != 0 {
		t.Errorf("expected no routes, got %+v", routes)
	}
}

func TestRoutes_DuplicateNamePicksLowestID(t *testing.T) {
	reg := mustRegistry(t, "alpha")
	a := sshPod("arena-alpha", "1.1.1.1", 1)
	a.ID = "b-second"
	b := sshPod("arena-alpha", "2.2.2.2", 2)
	b.ID = "a-first"

	for _, pods := range [][]types.Pod{{a, b}, {b, a}} {
		routes := Routes(pods, reg, 12000)
		if len(routes) != 1 || routes[0].UpstreamIP != "2.2.2.2" {
			t.Errorf("expected upstream of lowest id, got %+v", routes)
		}
	}
}

func TestRender_ByteStable(t *testing.T) {
	reg := mustRegistry(t, "alpha", "bravo", "charlie", "delta")
	pods := []types.Pod{
		sshPod("arena-delta", "4.4.4.4", 4),
		sshPod("arena-alpha", "1.1.1.1", 1),
		bootingPod("arena-bravo"),
		sshPod("arena-charlie", "3.3.3.3", 3),
	}
	opts := NginxOptions{AccessLog: "/a.log", ErrorLog: "/e.log", Header: true}
	first := ProxyConfig(pods, reg, 12000, opts)
	firstSSH := SSHConfig(pods, SSHOptions{Prefix: "arena"})

	shuffled := slices.Clone(pods)
	slices.Reverse(shuffled)
	for i := 0; i < 20; i++ {
		if got := ProxyConfig(pods, reg, 12000, opts); got != first {
			t.Fatal("proxy config not byte-stable across calls")
		}
		if got := ProxyConfig(shuffled, reg, 12000, opts); got != first {
			t.Fatal("proxy config depends on pod order")
		}
		if got := SSHConfig(shuffled, SSHOptions{Prefix: "arena"}); got != firstSSH {
			t.Fatal("ssh config depends on pod order")
		}
	}
}

// --- PodTable ---

func TestPodTable(t *testing.T) {
	now := time.Date(2025, 4, 4, 12, 0, 0, 0, time.UTC)
	p := sshPod("arena-alpha", "1.2.3.4", 22001)
	p.LastStatusChange = "Rented by User: Fri Apr 04 2025 10:00:00 GMT+0000 (Coordinated Universal Time)"
	p.CostPerHr = 0.25
	p.GPUCount = 1
	p.GPUDisplayName = "RTX A4000"
	p.ImageName = "nickypro/arena-env:5.2-with-a-very-long-suffix"

	var buf bytes.Buffer
	if err := PodTable(&buf, []types.Pod{p, bootingPod("arena-bravo")}, now); err != nil {
		t.Fatalf("PodTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"NAME", "arena-alpha", "Rented by User", "2 hours ago", "1.2.3.4", "22001", "$0.250", "1x", "RTX A4000", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Errorf("expected header + 2 rows, got %d lines", len(lines))
	}
}
