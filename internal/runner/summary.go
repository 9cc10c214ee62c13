// internal/runner/summary.go
package runner

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Summary aggregates the results of one state group.
type Summary struct {
	Total              int     `json:"total"`
	Average            float64 `json:"average"`
	Min                float64 `json:"min"`
	Max                float64 `json:"max"`
	PassRate           float64 `json:"passRate"`
	AverageExecutionMs float64 `json:"averageExecutionMs"`
}

// Summarize computes aggregate statistics over a group's run records. An
// empty record set yields a zero summary rather than NaNs.
func Summarize(metadata []RunMetadata) Summary {
	if len(metadata) == 0 {
		return Summary{}
	}

	summary := Summary{Total: len(metadata), Min: metadata[0].Score, Max: metadata[0].Score}
	passed := 0
	var scoreSum, msSum float64
	for _, record := range metadata {
		scoreSum += record.Score
		msSum += float64(record.ExecutionMs)
		if record.Score < summary.Min {
			summary.Min = record.Score
		}
		if record.Score > summary.Max {
			summary.Max = record.Score
		}
		if record.Pass {
			passed++
		}
	}
	summary.Average = scoreSum / float64(summary.Total)
	summary.PassRate = float64(passed) / float64(summary.Total)
	summary.AverageExecutionMs = msSum / float64(summary.Total)
	return summary
}

// String renders the single-line summary logged at group end.
func (s Summary) String() string {
	return fmt.Sprintf(
		"Summary: %d tests, average score: %.2f, range: %.2f - %.2f. Pass rate: %.1f%%, average execution time: %.2f ms",
		s.Total, s.Average, s.Min, s.Max, s.PassRate*100, s.AverageExecutionMs,
	)
}

var (
	summaryBlockStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				Padding(0, 2)
	summaryTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
)

// Render formats the summary as a styled terminal block.
func (s Summary) Render(stateKey string) string {
	lines := []string{
		summaryTitleStyle.Render(fmt.Sprintf("State %s", stateKey)),
		fmt.Sprintf("Tests:        %d", s.Total),
		fmt.Sprintf("Avg score:    %.2f (%.2f - %.2f)", s.Average, s.Min, s.Max),
		fmt.Sprintf("Pass rate:    %.1f%%", s.PassRate*100),
		fmt.Sprintf("Avg exec:     %.2f ms", s.AverageExecutionMs),
	}
	return summaryBlockStyle.Render(strings.Join(lines, "\n"))
}
