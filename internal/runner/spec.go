// internal/runner/spec.go
// Package runner orchestrates evaluation runs: it parses spec files, groups
// specs by the cluster state they need, provisions that state once per group,
// executes specs concurrently against the provider, and persists one metadata
// record per spec.
package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultStateKey groups specs that declare no state of their own.
const DefaultStateKey = "default"

// Spec is one test case: a question for the system under test plus the
// expected outcome to grade against.
type Spec struct {
	ID string `json:"id"`
	// StateKey names the fixture state this spec runs against. The older
	// clusterStateId field is honored as an alias.
	StateKey       string `json:"stateKey,omitempty"`
	ClusterStateID string `json:"clusterStateId,omitempty"`

	Question string `json:"question,omitempty"`
	Expected string `json:"expected,omitempty"`
	Index    string `json:"index,omitempty"`

	// Query-generation fields: the gold query and, optionally, its dialect
	// when the syntactic default would guess wrong.
	GoldQuery   string `json:"gold_query,omitempty"`
	GoldDialect string `json:"gold_dialect,omitempty"`

	Vars map[string]any `json:"vars,omitempty"`
}

// GroupKey resolves the state this spec belongs to, falling back to the
// shared default group when none is declared.
func (s Spec) GroupKey() string {
	if key := strings.TrimSpace(s.StateKey); key != "" {
		return key
	}
	if key := strings.TrimSpace(s.ClusterStateID); key != "" {
		return key
	}
	return DefaultStateKey
}

// ParseSpecFile reads newline-delimited JSON specs. A malformed line fails
// the whole file: partially-parsed run inputs are worse than no run.
func ParseSpecFile(path string) ([]Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var specs []Spec
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var spec Spec
		if err := json.Unmarshal([]byte(line), &spec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		if spec.ID == "" {
			return nil, fmt.Errorf("%s line %d: spec has no id", path, i+1)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ParseSpecFiles reads and concatenates multiple spec files in order.
func ParseSpecFiles(paths []string) ([]Spec, error) {
	var specs []Spec
	for _, path := range paths {
		parsed, err := ParseSpecFile(path)
		if err != nil {
			return nil, err
		}
		specs = append(specs, parsed...)
	}
	return specs, nil
}

// groupSpecs buckets specs by state key, preserving both the order groups
// first appear in and the order of specs within a group.
func groupSpecs(specs []Spec) (keys []string, groups map[string][]Spec) {
	groups = map[string][]Spec{}
	for _, spec := range specs {
		key := spec.GroupKey()
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], spec)
	}
	return keys, groups
}
