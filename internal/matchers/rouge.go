// internal/matchers/rouge.go
package matchers

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// RougeVariant selects which recall-oriented overlap statistic a RougeMatcher
// computes.
type RougeVariant string

const (
	// RougeN scores clipped n-gram overlap (unigrams by default).
	RougeN RougeVariant = "rouge-n"
	// RougeL scores the longest common token subsequence.
	RougeL RougeVariant = "rouge-l"
	// RougeS scores skip-bigram overlap (ordered token pairs, any gap).
	RougeS RougeVariant = "rouge-s"
)

// RougeMatcher grades by n-gram, LCS, or skip-bigram overlap between the
// received and expected text, returning the F1 measure over the variant's
// unit. Tokens are lowercased words; identical texts score 1.0 and disjoint
// texts score 0.0.
type RougeMatcher struct {
	variant RougeVariant
	ngram   int
}

// NewRougeMatcher builds a matcher for the given variant. Unknown variants
// are rejected so a misconfigured grader fails loudly instead of scoring 0.
func NewRougeMatcher(variant RougeVariant) (*RougeMatcher, error) {
	switch variant {
	case RougeN, RougeL, RougeS:
		return &RougeMatcher{variant: variant, ngram: 1}, nil
	default:
		return nil, fmt.Errorf("unknown rouge variant %q", variant)
	}
}

func (m *RougeMatcher) CalculateScore(_ context.Context, received, expected string, _ map[string]any) (Score, error) {
	got := tokenize(received)
	want := tokenize(expected)
	if len(got) == 0 && len(want) == 0 {
		return Score{Value: 1}, nil
	}
	if len(got) == 0 || len(want) == 0 {
		return Score{Value: 0}, nil
	}

	var matches, gotUnits, wantUnits int
	switch m.variant {
	case RougeN:
		matches = clippedOverlap(ngrams(got, m.ngram), ngrams(want, m.ngram))
		gotUnits = max(len(got)-m.ngram+1, 0)
		wantUnits = max(len(want)-m.ngram+1, 0)
	case RougeL:
		matches = lcsLength(got, want)
		gotUnits = len(got)
		wantUnits = len(want)
	case RougeS:
		matches = clippedOverlap(skipBigrams(got), skipBigrams(want))
		gotUnits = len(got) * (len(got) - 1) / 2
		wantUnits = len(want) * (len(want) - 1) / 2
	}
	if gotUnits == 0 || wantUnits == 0 {
		return Score{Value: 0}, nil
	}

	precision := float64(matches) / float64(gotUnits)
	recall := float64(matches) / float64(wantUnits)
	value := 0.0
	if precision+recall > 0 {
		value = 2 * precision * recall / (precision + recall)
	}
	return Score{
		Value:  value,
		Extras: map[string]any{"precision": precision, "recall": recall},
	}, nil
}

// tokenize lowercases text and splits it into word tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func ngrams(tokens []string, n int) map[string]int {
	grams := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		grams[strings.Join(tokens[i:i+n], " ")]++
	}
	return grams
}

func skipBigrams(tokens []string) map[string]int {
	pairs := make(map[string]int)
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			pairs[tokens[i]+" "+tokens[j]]++
		}
	}
	return pairs
}

// clippedOverlap counts shared units, capping each unit's contribution at its
// count in the expected text.
func clippedOverlap(got, want map[string]int) int {
	overlap := 0
	for unit, count := range got {
		overlap += min(count, want[unit])
	}
	return overlap
}

// lcsLength computes the longest common subsequence length over tokens with
// single-row dynamic programming, like Distance does for runes.
func lcsLength(a, b []string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return 0
	}

	row := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			current := row[j]
			if a[i-1] == b[j-1] {
				row[j] = prev + 1
			} else {
				row[j] = max(row[j], row[j-1])
			}
			prev = current
		}
	}
	return row[len(b)]
}
