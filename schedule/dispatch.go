package schedule

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
)

// Dispatcher executes a fired rule's command.
type Dispatcher interface {
	Dispatch(ctx context.Context, r Rule) error
}

// ShellDispatcher runs commands through "sh -c" in WorkDir, each bounded by
// Timeout when positive.
type ShellDispatcher struct {
	WorkDir string
	Timeout time.Duration
}

func (d ShellDispatcher) Dispatch(ctx context.Context, r Rule) error {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", r.Command) //nolint:gosec
	cmd.Dir = d.WorkDir
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if output := strings.TrimSpace(out.String()); output != "" {
		log.WithFunc("schedule.Dispatch").Infof(ctx, "%s output:\n%s", r.Name, output)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("run %q: %w", r.Command, ctxErr)
		}
		return fmt.Errorf("run %q: %w", r.Command, err)
	}
	return nil
}

var (
	mutatingScripts = []string{"create_new_pods", "stop_pods", "delete_pods"}
	mutatingVerbs   = map[string]bool{"create": true, "stop": true, "delete": true, "rm": true}
)

// IsMutating reports whether command changes the fleet: a token naming one of
// the legacy create/stop/delete scripts (wrappers included), or a podfleet
// create/stop/delete verb.
func IsMutating(command string) bool {
	segments := strings.FieldsFunc(command, func(r rune) bool {
		return r == ';' || r == '&' || r == '|' || r == '(' || r == ')' || r == '\n'
	})
	for _, seg := range segments {
		afterCLI := false
		for _, f := range strings.Fields(seg) {
			base := filepath.Base(f)
			switch {
			case runsMutatingScript(base):
				return true
			case base == "podfleet":
				afterCLI = true
			case afterCLI && mutatingVerbs[f]:
				return true
			}
		}
	}
	return false
}

func runsMutatingScript(token string) bool {
	for _, name := range mutatingScripts {
		if strings.Contains(token, name) {
			return true
		}
	}
	return false
}
