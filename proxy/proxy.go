// Package proxy keeps the nginx stream config of the SSH proxy host in step
// with the fleet: render, write atomically, reload the daemon.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/podfleet/utils"
)

const (
	configPerm    = 0o644
	pendingSuffix = ".reload-pending"
)

// Reloader signals the proxy daemon to pick up a new config.
type Reloader interface {
	Reload(ctx context.Context) error
}

// CommandReloader runs an external command, e.g. "sudo systemctl restart nginx".
// An empty Argv makes Reload a no-op.
type CommandReloader struct {
	Argv []string
}

func (r CommandReloader) Reload(ctx context.Context) error {
	if len(r.Argv) == 0 {
		return nil
	}
	out, err := exec.CommandContext(ctx, r.Argv[0], r.Argv[1:]...).CombinedOutput() //nolint:gosec
	if err != nil {
		return fmt.Errorf("reload %q: %w: %s", strings.Join(r.Argv, " "), err, bytes.TrimSpace(out))
	}
	return nil
}

// WriteConfig atomically replaces path with content. It returns false
// without touching the file when the content is already current.
func WriteConfig(ctx context.Context, path, content string) (bool, error) {
	logger := log.WithFunc("proxy.WriteConfig")
	current, err := os.ReadFile(path) //nolint:gosec
	switch {
	case err == nil && string(current) == content:
		logger.Infof(ctx, "%s is up to date", path)
		return false, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := utils.AtomicWriteFile(path, []byte(content), configPerm); err != nil {
		return false, err
	}
	logger.Infof(ctx, "wrote %s (%d bytes)", path, len(content))
	return true, nil
}

// PendingPath is the marker that exists while a written config has not been
// picked up by a successful reload.
func PendingPath(path string) string { return path + pendingSuffix }

func reloadPending(path string) bool {
	_, err := os.Stat(PendingPath(path))
	return err == nil
}

func setReloadPending(path string) error {
	if err := os.WriteFile(PendingPath(path), nil, configPerm); err != nil { //nolint:gosec
		return fmt.Errorf("mark reload pending: %w", err)
	}
	return nil
}

func clearReloadPending(path string) error {
	if err := os.Remove(PendingPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
