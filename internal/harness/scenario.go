package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/match"
	"github.com/roach88/contracttape/internal/recording"
)

// Scenario is one matcher conformance case.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Recorded and Current hold interactions in recording JSON form.
	Recorded []map[string]any `yaml:"recorded"`
	Current  []map[string]any `yaml:"current"`

	Expect Expect `yaml:"expect"`
}

// Expect is what running a scenario must produce.
type Expect struct {
	Impact   string            `yaml:"impact"`
	Valid    *bool             `yaml:"valid,omitempty"`
	Findings []ExpectedFinding `yaml:"findings,omitempty"`
	Error    string            `yaml:"error,omitempty"`
}

// ExpectedFinding identifies a finding without its diagnostic text.
type ExpectedFinding struct {
	Bucket match.Bucket `yaml:"bucket"`
	Kind   match.Kind   `yaml:"kind"`
	Index  int          `yaml:"index"`
	Header string       `yaml:"header,omitempty"`
}

func (f ExpectedFinding) String() string {
	s := fmt.Sprintf("%s [%d] %s", f.Bucket, f.Index, f.Kind)
	if f.Header != "" {
		s += " " + f.Header
	}
	return s
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("scenario name %q used by %s and %s", s.Name, prev, path)
		}
		names[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Expect.Error == "" {
		if _, err := impact.ParseLevel(s.Expect.Impact); err != nil {
			return fmt.Errorf("expect.impact: %w", err)
		}
	}
	for i, f := range s.Expect.Findings {
		switch f.Bucket {
		case match.BucketAdded, match.BucketRemoved, match.BucketChanged:
		default:
			return fmt.Errorf("expect.findings[%d]: unknown bucket %q", i, f.Bucket)
		}
		if !knownKind(f.Kind) {
			return fmt.Errorf("expect.findings[%d]: unknown kind %q", i, f.Kind)
		}
	}
	if _, err := s.RecordedSet(); err != nil {
		return fmt.Errorf("recorded: %w", err)
	}
	if _, err := s.CurrentSet(); err != nil {
		return fmt.Errorf("current: %w", err)
	}
	return nil
}

func knownKind(k match.Kind) bool {
	for _, known := range match.Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// RecordedSet decodes Recorded into interactions.
func (s *Scenario) RecordedSet() (recording.InteractionSet, error) {
	return toSet(s.Recorded)
}

// CurrentSet decodes Current into interactions.
func (s *Scenario) CurrentSet() (recording.InteractionSet, error) {
	return toSet(s.Current)
}

// toSet round-trips the YAML form through JSON so interactions decode with
// the same rules as recording files.
func toSet(raw []map[string]any) (recording.InteractionSet, error) {
	set := recording.InteractionSet{}
	if len(raw) == 0 {
		return set, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return set, nil
}
