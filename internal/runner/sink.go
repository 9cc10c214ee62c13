// internal/runner/sink.go
package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
)

// ResultSink receives one RunMetadata per executed spec.
type ResultSink interface {
	Persist(metadata RunMetadata) error
}

var resultFilePattern = regexp.MustCompile(`^results_(\d+)\.jsonl$`)

// JSONLSink appends run records to <resultsDir>/<runnerName>/results_<n>.jsonl.
// The file index is chosen on first write as one past the highest existing
// index, so every run lands in its own file even when earlier result files
// were removed. Records are appended line by line as they arrive, which keeps
// partial results on disk if the run crashes.
type JSONLSink struct {
	mu   sync.Mutex
	dir  string
	file *os.File
	path string
}

// NewJSONLSink builds a sink for the given runner under the results
// directory. No file is created until the first record arrives.
func NewJSONLSink(resultsDir, runnerName string) *JSONLSink {
	return &JSONLSink{dir: filepath.Join(resultsDir, runnerName)}
}

// Persist appends one record, opening the run's result file on first use.
func (s *JSONLSink) Persist(metadata RunMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	return json.NewEncoder(s.file).Encode(metadata)
}

func (s *JSONLSink) open() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	highest := 0
	for _, entry := range entries {
		match := resultFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		highest = max(highest, index)
	}

	s.path = filepath.Join(s.dir, fmt.Sprintf("results_%d.jsonl", highest+1))
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.file = file
	return nil
}

// Path returns the result file path, empty until the first record is written.
func (s *JSONLSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Close releases the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
