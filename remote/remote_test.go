package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// fakeSSH writes an executable shell script standing in for the ssh binary.
func fakeSSH(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ssh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil { //nolint:gosec
		t.Fatal(err)
	}
	return path
}

// --- SSH runner ---

func TestSSH_PassesOptionsAndCapturesOutput(t *testing.T) {
	bin := fakeSSH(t, `echo "$@"; echo oops >&2; exit 3`)
	res, err := NewSSH(bin, 10*time.Second).Run(context.Background(), "arena-alpha", "uptime")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	want := "-o BatchMode=yes -o ConnectTimeout=5 arena-alpha uptime"
	if strings.TrimSpace(res.Stdout) != want {
		t.Errorf("expected args %q, got %q", want, res.Stdout)
	}
	if res.Output() != "oops" {
		t.Errorf("expected stderr preferred, got %q", res.Output())
	}
}

func TestSSH_Timeout(t *testing.T) {
	bin := fakeSSH(t, `exec sleep 5`)
	start := time.Now()
	_, err := NewSSH(bin, 100*time.Millisecond).Run(context.Background(), "h", "true")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("timeout not enforced")
	}
}

func TestSSH_MissingBinary(t *testing.T) {
	_, err := NewSSH("podfleet-no-such-ssh-binary", time.Second).Run(context.Background(), "h", "true")
	if !errors.Is(err, ErrSSHNotFound) {
		t.Fatalf("expected ErrSSHNotFound, got %v", err)
	}
	_, err = NewSSH(filepath.Join(t.TempDir(), "missing"), time.Second).Run(context.Background(), "h", "true")
	if !errors.Is(err, ErrSSHNotFound) {
		t.Fatalf("expected ErrSSHNotFound for absolute path, got %v", err)
	}
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"":             "''",
		"plain":        "'plain'",
		`export A="b"`: `'export A="b"'`,
		"it's":         `'it'"'"'s'`,
	}
	for in, want := range tests {
		if got := ShellQuote(in); got != want {
			t.Errorf("ShellQuote(%q): expected %q, got %q", in, want, got)
		}
	}
}

// --- ReadKeys ---

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadKeys(t *testing.T) {
	path := writeFile(t, "keys.csv", "arena-alpha,sk-1\n\narena-bravo, sk-2 \nbroken\narena-charlie,sk-$(rm -rf)\n,sk-4\n")
	keys, err := ReadKeys(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadKeys: %v", err)
	}
	if len(keys) != 2 || keys["arena-alpha"] != "sk-1" || keys["arena-bravo"] != "sk-2" {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestReadKeys_MissingFile(t *testing.T) {
	keys, err := ReadKeys(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil || len(keys) != 0 {
		t.Errorf("expected empty result, got %v, %v", keys, err)
	}
}

// --- Deployer ---

type recordingRunner struct {
	calls []string
	fail  map[string]error
	exit  map[string]int
}

func (r *recordingRunner) Run(_ context.Context, host, command string) (Result, error) {
	r.calls = append(r.calls, host+" "+command)
	if err := r.fail[host]; err != nil {
		return Result{}, err
	}
	return Result{ExitCode: r.exit[host], Stderr: "denied"}, nil
}

func TestDeployer_SortedHostsAndCommands(t *testing.T) {
	openai := writeFile(t, "openai.csv", "bravo,sk-o2\nalpha,sk-o1\n")
	anthropic := writeFile(t, "anthropic.csv", "alpha,sk-a1\n")
	rr := &recordingRunner{}
	d := &Deployer{Runner: rr, RCFiles: []string{"~/.bashrc", "~/.zshrc"}}

	sum, err := d.Deploy(context.Background(), map[string]string{
		"OPENAI_API_KEY":    openai,
		"ANTHROPIC_API_KEY": anthropic,
	})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	want := []string{
		`alpha echo 'export ANTHROPIC_API_KEY="sk-a1"' >> ~/.bashrc`,
		`alpha echo 'export ANTHROPIC_API_KEY="sk-a1"' >> ~/.zshrc`,
		`alpha echo 'export OPENAI_API_KEY="sk-o1"' >> ~/.bashrc`,
		`alpha echo 'export OPENAI_API_KEY="sk-o1"' >> ~/.zshrc`,
		`bravo echo 'export OPENAI_API_KEY="sk-o2"' >> ~/.bashrc`,
		`bravo echo 'export OPENAI_API_KEY="sk-o2"' >> ~/.zshrc`,
	}
	if !slices.Equal(rr.calls, want) {
		t.Errorf("unexpected calls:\n%s", strings.Join(rr.calls, "\n"))
	}
	if sum.Hosts != 2 || sum.Succeeded != 6 || len(sum.Failed) != 0 {
		t.Errorf("unexpected summary: %s", sum)
	}
}

func TestDeployer_PerHostFailureContinues(t *testing.T) {
	keys := writeFile(t, "k.csv", "alpha,k1\nbravo,k2\ncharlie,k3\n")
	rr := &recordingRunner{
		fail: map[string]error{"alpha": fmt.Errorf("ssh alpha: %w", context.DeadlineExceeded)},
		exit: map[string]int{"bravo": 255},
	}
	d := &Deployer{Runner: rr, RCFiles: []string{"~/.bashrc"}}

	sum, err := d.Deploy(context.Background(), map[string]string{"OPENAI_API_KEY": keys})
	if err != nil {
		t.Fatalf("per-host failures must not be fatal: %v", err)
	}
	if len(rr.calls) != 3 || sum.Succeeded != 1 || len(sum.Failed) != 2 {
		t.Errorf("unexpected result: calls=%v summary=%s", rr.calls, sum)
	}
}

func TestDeployer_MissingSSHIsFatal(t *testing.T) {
	keys := writeFile(t, "k.csv", "alpha,k1\nbravo,k2\n")
	rr := &recordingRunner{fail: map[string]error{"alpha": fmt.Errorf("%w: ssh", ErrSSHNotFound)}}
	d := &Deployer{Runner: rr, RCFiles: []string{"~/.bashrc"}}

	_, err := d.Deploy(context.Background(), map[string]string{"OPENAI_API_KEY": keys})
	if !errors.Is(err, ErrSSHNotFound) {
		t.Fatalf("expected ErrSSHNotFound, got %v", err)
	}
	if len(rr.calls) != 1 {
		t.Errorf("expected abort after first call, got %v", rr.calls)
	}
}

func TestDeployer_InvalidEnvName(t *testing.T) {
	d := &Deployer{Runner: &recordingRunner{}}
	if _, err := d.Deploy(context.Background(), map[string]string{"BAD-NAME": "x.csv"}); err == nil {
		t.Error("expected error for invalid variable name")
	}
}
