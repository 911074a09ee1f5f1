// Package schedule fires fleet commands at fixed UTC times on chosen
// weekdays. It is meant to be invoked once per minute by cron or a systemd
// timer; rules are evaluated fresh on every tick.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

const minuteLayout = "15:04"

var timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Rule is one scheduled command.
type Rule struct {
	Name    string   `json:"name" yaml:"name"`
	Command string   `json:"command" yaml:"command"`
	Time    string   `json:"time" yaml:"time"` // HH:MM, UTC
	Days    []string `json:"days" yaml:"days"`
	// Enabled defaults to true when absent.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the rule may fire.
func (r Rule) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// Matches reports whether the rule fires at now: it is enabled, the UTC
// time truncated to the minute equals Time, and the UTC weekday is one of
// Days (case-insensitive).
func (r Rule) Matches(now time.Time) bool {
	if !r.IsEnabled() {
		return false
	}
	now = now.UTC()
	if now.Format(minuteLayout) != r.Time {
		return false
	}
	today := strings.ToLower(now.Weekday().String())
	return slices.ContainsFunc(r.Days, func(d string) bool {
		return strings.ToLower(strings.TrimSpace(d)) == today
	})
}

// Validate reports configuration mistakes that would make the rule
// misbehave or never fire.
func (r Rule) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if strings.TrimSpace(r.Command) == "" {
		errs = append(errs, errors.New("command is empty"))
	}
	if !timeRe.MatchString(r.Time) {
		errs = append(errs, fmt.Errorf("time %q is not HH:MM", r.Time))
	}
	if len(r.Days) == 0 {
		errs = append(errs, errors.New("days is empty"))
	}
	for _, d := range r.Days {
		if _, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]; !ok {
			errs = append(errs, fmt.Errorf("unknown day %q", d))
		}
	}
	return errors.Join(errs...)
}

var weekdays = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 7) //nolint:mnd
	for d := time.Sunday; d <= time.Saturday; d++ {
		m[strings.ToLower(d.String())] = d
	}
	return m
}()

// State is the outcome of evaluating one rule at one tick.
type State string

const (
	StateFired        State = "fired"
	StateSkipped      State = "skipped"
	StateAlreadyFired State = "already-fired"
	StateDryRun       State = "dry-run"
)

// Decision pairs a rule with its evaluation result.
type Decision struct {
	Rule  Rule
	State State
}

// Evaluate decides, in configuration order, which rules fire at now.
func Evaluate(rules []Rule, now time.Time) []Decision {
	out := make([]Decision, 0, len(rules))
	for _, r := range rules {
		st := StateSkipped
		if r.Matches(now) {
			st = StateFired
		}
		out = append(out, Decision{Rule: r, State: st})
	}
	return out
}

// MinuteKey identifies the firing window that contains t.
func MinuteKey(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(time.RFC3339)
}
