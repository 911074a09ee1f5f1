package remote

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/podfleet/utils"
)

var envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReadKeys reads a "hostname,key" CSV file. A missing file yields no keys.
// Malformed rows are logged and skipped.
func ReadKeys(ctx context.Context, path string) (map[string]string, error) {
	logger := log.WithFunc("remote.ReadKeys")
	f, err := os.Open(utils.ExpandHome(path)) //nolint:gosec
	if errors.Is(err, os.ErrNotExist) {
		logger.Infof(ctx, "key file %s not found, skipping", path)
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	keys := map[string]string{}
	for line := 1; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) != 2 {
			logger.Warnf(ctx, "%s:%d: expected 2 fields, got %d", path, line, len(row))
			continue
		}
		host, key := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if host == "" || key == "" || !safeValue(key) {
			logger.Warnf(ctx, "%s:%d: skipping malformed row", path, line)
			continue
		}
		keys[host] = key
	}
}

// safeValue rejects characters that would break out of a double-quoted
// shell assignment.
func safeValue(s string) bool {
	return !strings.ContainsAny(s, "\"$`\\\n\r")
}

// ExportLine returns `export NAME="value"`.
func ExportLine(name, value string) string {
	return fmt.Sprintf(`export %s="%s"`, name, value)
}

// DeploySummary counts per-command outcomes of a key deployment.
type DeploySummary struct {
	Hosts     int
	Succeeded int
	Failed    []string // "host: ENV -> rc"
}

func (s DeploySummary) String() string {
	return fmt.Sprintf("keys: hosts=%d succeeded=%d failed=%d", s.Hosts, s.Succeeded, len(s.Failed))
}

// Deployer appends API key exports to shell rc files on each host.
type Deployer struct {
	Runner  Runner
	RCFiles []string
}

// Deploy reads each source (env var name to CSV path) and, host by host in
// sorted order, appends the export line for every key the host has to every
// rc file. Lines are appended, never deduplicated. A failing host does not
// stop the batch; a missing ssh binary does.
func (d *Deployer) Deploy(ctx context.Context, sources map[string]string) (DeploySummary, error) {
	logger := log.WithFunc("remote.Deploy")
	var sum DeploySummary

	envs := make([]string, 0, len(sources))
	for env := range sources {
		if !envNameRe.MatchString(env) {
			return sum, fmt.Errorf("invalid environment variable name %q", env)
		}
		envs = append(envs, env)
	}
	slices.Sort(envs)

	keysByEnv := make(map[string]map[string]string, len(envs))
	hostSet := map[string]struct{}{}
	for _, env := range envs {
		keys, err := ReadKeys(ctx, sources[env])
		if err != nil {
			return sum, err
		}
		keysByEnv[env] = keys
		for h := range keys {
			hostSet[h] = struct{}{}
		}
	}
	hosts := make([]string, 0, len(hostSet))
	for h := range hostSet {
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	sum.Hosts = len(hosts)
	if len(hosts) == 0 {
		logger.Warnf(ctx, "no hosts found in any key file")
		return sum, nil
	}

	for _, host := range hosts {
		for _, env := range envs {
			key, ok := keysByEnv[env][host]
			if !ok {
				continue
			}
			for _, rc := range d.RCFiles {
				item := fmt.Sprintf("%s: %s -> %s", host, env, rc)
				res, err := d.Runner.Run(ctx, host, "echo "+ShellQuote(ExportLine(env, key))+" >> "+rc)
				switch {
				case errors.Is(err, ErrSSHNotFound) || errors.Is(err, context.Canceled):
					sum.Failed = append(sum.Failed, item)
					return sum, err
				case err != nil:
					logger.Warnf(ctx, "%s: %v", item, err)
					sum.Failed = append(sum.Failed, item)
				case res.ExitCode != 0:
					logger.Warnf(ctx, "%s: exit %d: %s", item, res.ExitCode, res.Output())
					sum.Failed = append(sum.Failed, item)
				default:
					logger.Infof(ctx, "%s: ok", item)
					sum.Succeeded++
				}
			}
		}
	}
	return sum, nil
}
