// internal/matchers/levenshtein.go
package matchers

import "context"

// LevenshteinMatcher grades by normalized edit distance:
// (maxLen - distance) / maxLen. Identical strings score 1.0; a score of 0.0
// is reachable when the distance equals the longer string's length.
type LevenshteinMatcher struct{}

func (LevenshteinMatcher) CalculateScore(_ context.Context, received, expected string, _ map[string]any) (Score, error) {
	return Score{Value: Similarity(received, expected)}, nil
}

// Similarity returns the normalized levenshtein similarity of two strings.
func Similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return float64(longest-Distance(a, b)) / float64(longest)
}

// Distance computes the levenshtein edit distance between two strings,
// counted in runes. Single-row dynamic programming keeps allocation at
// O(min(len a, len b)).
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			current := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, min(row[j-1]+1, prev+cost))
			prev = current
		}
	}
	return row[len(rb)]
}
