// Package scenario runs batches of booking searches described in YAML, each
// on its own page, and evaluates advisory checks against their outcomes.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/fareprobe/internal/booking"
)

// Scenario is one search plus the checks reported on its outcome.
type Scenario struct {
	booking.Request `yaml:",inline"`
	Checks          []string `yaml:"checks,omitempty"`

	compiled []Check
}

// Name is the scenario label.
func (s Scenario) Name() string { return s.Label }

// File is the on-disk layout of a scenario file.
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Load reads and validates the scenario file at path.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenarios, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// Parse decodes scenarios, names unnamed ones by position, and compiles
// their checks. Unknown keys are rejected.
func Parse(data []byte) ([]Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid scenario yaml: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, errors.New("no scenarios defined")
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i := range f.Scenarios {
		s := &f.Scenarios[i]
		if s.Label == "" {
			s.Label = fmt.Sprintf("scenario-%d", i+1)
		}
		if seen[s.Label] {
			return nil, fmt.Errorf("duplicate scenario name %q", s.Label)
		}
		seen[s.Label] = true

		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Label, err)
		}
		for _, src := range s.Checks {
			c, err := CompileCheck(src)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", s.Label, err)
			}
			s.compiled = append(s.compiled, c)
		}
	}
	return f.Scenarios, nil
}
