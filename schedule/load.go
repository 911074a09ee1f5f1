package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoSchedule means the schedule file does not exist.
var ErrNoSchedule = errors.New("schedule file not found")

// File is a schedule document: {"schedules": [...]}.
type File struct {
	Schedules []Rule `json:"schedules" yaml:"schedules"`
}

// Load reads a schedule document. Files ending in .yaml or .yml are YAML;
// anything else is JSON. Every rule is validated and all problems are
// reported together.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoSchedule, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a schedule document.
func Parse(data []byte, asYAML bool) (*File, error) {
	var f File
	var err error
	if asYAML {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	var errs []error
	for i, r := range f.Schedules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("schedules[%d] %q: %w", i, r.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &f, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
