package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/projecteru2/podfleet/naming"
	"github.com/projecteru2/podfleet/provider"
	"github.com/projecteru2/podfleet/provider/runpod"
	"github.com/projecteru2/podfleet/reconcile"
	"github.com/projecteru2/podfleet/types"
	"github.com/projecteru2/podfleet/utils"
)

// initProvider requires credentials and builds the provider client.
func initProvider() (provider.Provider, error) {
	if err := conf.RequireAPIKey(); err != nil {
		return nil, err
	}
	p, err := runpod.New(conf)
	if err != nil {
		return nil, fmt.Errorf("init provider: %w", err)
	}
	return p, nil
}

// initRegistry builds the naming registry from the configured allow-list.
func initRegistry() (*naming.Registry, error) {
	reg, err := naming.New(conf.Prefix, conf.Machines)
	if err != nil {
		return nil, fmt.Errorf("init naming registry: %w", err)
	}
	return reg, nil
}

// listPods fetches the current fleet. It is never cached between commands.
func listPods(ctx context.Context, p provider.Provider) ([]types.Pod, error) {
	pods, err := p.ListPods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	return pods, nil
}

func newExecutor(p provider.Provider) *reconcile.Executor {
	return reconcile.NewExecutor(p, seconds(conf.CreateIntervalSeconds), seconds(conf.ActionIntervalSeconds))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// confirm shows the exact pods an action will touch and asks (y/N). --yes
// skips the prompt; without it a non-interactive stdin is refused.
func confirm(cmd *cobra.Command, action string, names []string) (bool, error) {
	out := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(out, "The following %d pod(s) will be %s:\n", len(names), action)
	for _, n := range names {
		_, _ = fmt.Fprintf(out, "  - %s\n", n)
	}
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	if f, ok := cmd.InOrStdin().(*os.File); !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec
		return false, fmt.Errorf("refusing to continue without --yes: stdin is not a terminal")
	}
	return promptYes(cmd.InOrStdin(), out, "Proceed? (y/N): ")
}

func promptYes(in io.Reader, out io.Writer, prompt string) (bool, error) {
	_, _ = fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func addYesFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP("yes", "y", false, "skip confirmation")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("include", nil, "only act on these pod names")
	cmd.Flags().StringSlice("exclude", nil, "never act on these pod names (wins over --include)")
}

// filterFlags returns --include/--exclude. A short machine name also matches
// its full pod name.
func filterFlags(cmd *cobra.Command) (include, exclude []string) {
	inc, _ := cmd.Flags().GetStringSlice("include")
	exc, _ := cmd.Flags().GetStringSlice("exclude")
	return expandNames(inc), expandNames(exc)
}

func expandNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !strings.HasPrefix(n, conf.Prefix+"-") {
			out = append(out, naming.PodName(conf.Prefix, n), n)
			continue
		}
		out = append(out, n)
	}
	return out
}

// printSummary reports a batch result. Per-pod failures are reported, not
// turned into a nonzero exit.
func printSummary(ctx context.Context, cmd *cobra.Command, s reconcile.Summary) {
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), s.String())
	if len(s.Failed) > 0 {
		log.WithFunc("cmd."+s.Op).Warnf(ctx, "failed: %s", s.FailedNames())
	}
}

// readPublicKey loads the SSH public key injected into new pods. A missing
// key is a warning: pods are still created, just without the key.
func readPublicKey(ctx context.Context) string {
	if conf.SSHPublicKeyPath == "" {
		return ""
	}
	data, err := os.ReadFile(utils.ExpandHome(conf.SSHPublicKeyPath))
	if err != nil {
		log.WithFunc("cmd.readPublicKey").Warnf(ctx, "ssh public key %s unavailable: %v", conf.SSHPublicKeyPath, err)
		return ""
	}
	return strings.TrimSpace(string(data))
}
