// internal/matchers/external.go
package matchers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/askbench/askbench/internal/logging"
)

// venvNames are the virtualenv directory names probed when locating a python
// interpreter for a scorer script.
var venvNames = []string{".venv", ".env", "venv"}

// ExternalMatcher delegates scoring to an out-of-process scorer script. The
// script is invoked as `<interpreter> <script> <received> <contextJSON>`,
// where the context JSON contains at minimum the expected value. The script
// must print a bare boolean, a bare number, or a JSON object with a "score"
// field; anything else fails the evaluation rather than defaulting.
type ExternalMatcher struct {
	packagesDir string
	scriptPath  string
	interpreter string
}

// NewExternalMatcher resolves a scorer script relative to the packages
// directory. When executable is empty, the closest virtualenv python between
// the script and the packages root is used, falling back to "python" on PATH.
func NewExternalMatcher(packagesDir, scriptRelPath, executable string) (*ExternalMatcher, error) {
	scriptPath := filepath.Join(packagesDir, scriptRelPath)
	info, err := os.Stat(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("scorer script %q does not exist: %w", scriptPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("scorer script %q is not a file", scriptPath)
	}

	matcher := &ExternalMatcher{packagesDir: packagesDir, scriptPath: scriptPath}
	switch {
	case executable == "":
		matcher.interpreter = findVenvPython(filepath.Dir(scriptPath), packagesDir)
	case strings.ContainsRune(executable, filepath.Separator):
		matcher.interpreter = filepath.Join(packagesDir, executable)
	default:
		matcher.interpreter = executable
	}
	return matcher, nil
}

// findVenvPython walks from dir up to (but not including) stop, returning the
// first venv interpreter found, or "python" when none exists.
func findVenvPython(dir, stop string) string {
	stop = filepath.Clean(stop)
	for current := filepath.Clean(dir); current != stop; current = filepath.Dir(current) {
		for _, venv := range venvNames {
			candidate := filepath.Join(current, venv, "bin", "python")
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		if filepath.Dir(current) == current {
			break
		}
	}
	return "python"
}

func (m *ExternalMatcher) CalculateScore(ctx context.Context, received, expected string, vars map[string]any) (Score, error) {
	callContext := map[string]any{"expected": expected}
	for key, value := range vars {
		callContext[key] = value
	}
	contextJSON, err := json.Marshal(callContext)
	if err != nil {
		return Score{}, err
	}

	cmd := exec.CommandContext(ctx, m.interpreter, m.scriptPath, received, string(contextJSON))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if stderr.Len() > 0 {
		logging.LogEvent("scorer %s stderr: %s", m.scriptPath, strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		return Score{}, fmt.Errorf("scorer %s failed: %w", m.scriptPath, err)
	}

	return parseScorerOutput(strings.TrimSpace(stdout.String()))
}

func parseScorerOutput(output string) (Score, error) {
	if strings.HasPrefix(output, "{") {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(output), &parsed); err != nil {
			return Score{}, fmt.Errorf("scorer returned invalid json: %w", err)
		}
		raw, ok := parsed["score"]
		if !ok {
			return Score{}, fmt.Errorf("scorer json output has no score field")
		}
		value, ok := raw.(float64)
		if !ok {
			return Score{}, fmt.Errorf("scorer score field is not a number: %v", raw)
		}
		delete(parsed, "score")
		score := Score{Value: value}
		if len(parsed) > 0 {
			score.Extras = parsed
		}
		return score, nil
	}

	switch strings.ToLower(output) {
	case "true":
		return Score{Value: 1}, nil
	case "false":
		return Score{Value: 0}, nil
	}

	value, err := strconv.ParseFloat(output, 64)
	if err != nil {
		return Score{}, fmt.Errorf("scorer must print a number, boolean, or json with a score field, got %q", output)
	}
	return Score{Value: value}, nil
}
