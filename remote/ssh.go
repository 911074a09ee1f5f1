// Package remote runs one-off shell commands on pods over ssh.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrSSHNotFound means the ssh client binary is unavailable. It is fatal for
// the whole batch.
var ErrSSHNotFound = errors.New("ssh binary not found")

const waitDelay = 2 * time.Second

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns the most useful message for logs: stderr, then stdout.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner executes a single shell command on a named host.
type Runner interface {
	Run(ctx context.Context, host, command string) (Result, error)
}

// SSH is a Runner backed by the ssh client binary. Host aliases resolve
// through the user's ssh config, so hosts are usually pod names.
type SSH struct {
	Binary  string
	Timeout time.Duration
}

// NewSSH creates an SSH runner. Each Run is bounded by timeout.
func NewSSH(binary string, timeout time.Duration) *SSH {
	if binary == "" {
		binary = "ssh"
	}
	return &SSH{Binary: binary, Timeout: timeout}
}

// Run executes command on host. A nonzero remote exit status is reported in
// Result, not as an error. Errors are returned for timeouts, a missing ssh
// binary (ErrSSHNotFound) and other failures to run.
func (s *SSH) Run(ctx context.Context, host, command string) (Result, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.Binary, s.args(host, command)...) //nolint:gosec
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("ssh %s: %w", host, ctxErr)
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	case isNotFound(err):
		return res, fmt.Errorf("%w: %s: %w", ErrSSHNotFound, s.Binary, err)
	default:
		return res, fmt.Errorf("ssh %s: %w", host, err)
	}
}

func (s *SSH) args(host, command string) []string {
	args := []string{"-o", "BatchMode=yes"}
	if s.Timeout > 0 {
		connect := max(int(s.Timeout/time.Second)/2, 1)
		args = append(args, "-o", "ConnectTimeout="+strconv.Itoa(connect))
	}
	return append(args, host, command)
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist)
}

// ShellQuote quotes s for a POSIX shell as a single word.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
