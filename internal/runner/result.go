// internal/runner/result.go
package runner

import (
	"sync"
	"time"
)

// Result is the graded outcome of one spec. Message is lazy: it is only
// rendered when the result is reported as a failure.
type Result struct {
	Pass    bool
	Score   float64
	Message func() string
	Extras  map[string]any
}

// RunMetadata is the persisted record of one spec execution.
type RunMetadata struct {
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	Pass        bool           `json:"pass"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Extras      map[string]any `json:"extras,omitempty"`
	ExecutedAt  int64          `json:"executed_at"`
	ExecutionMs int64          `json:"execution_ms"`
}

// buildMetadata assembles the persisted record for one executed spec.
func buildMetadata(spec Spec, output, callError string, result *Result, executionMs int64) RunMetadata {
	metadata := RunMetadata{
		ID:          spec.ID,
		Score:       result.Score,
		Pass:        result.Pass,
		Output:      output,
		Error:       callError,
		Extras:      result.Extras,
		ExecutedAt:  time.Now().UnixMilli(),
		ExecutionMs: executionMs,
	}
	if !result.Pass && result.Message != nil {
		metadata.Reason = result.Message()
	}
	return metadata
}

// runContext accumulates the metadata of one state group. It is created at
// group setup and discarded at group end, so no results leak between groups.
type runContext struct {
	mu       sync.Mutex
	metadata []RunMetadata
}

func (rc *runContext) append(m RunMetadata) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.metadata = append(rc.metadata, m)
}

func (rc *runContext) snapshot() []RunMetadata {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]RunMetadata, len(rc.metadata))
	copy(out, rc.metadata)
	return out
}
