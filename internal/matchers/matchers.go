// internal/matchers/matchers.go
// Package matchers provides the pluggable scoring strategies used to grade
// model output against expected values. Every matcher reduces to the same
// contract: received and expected text in, a normalized score in [0,1] out,
// with optional extra detail for the run record.
package matchers

import "context"

// Score is the outcome of one matcher invocation. Value is always in [0,1].
type Score struct {
	Value  float64
	Extras map[string]any
}

// Matcher grades a received value against an expected one. Context carries
// additional keys the matcher may need (for external scorers it is forwarded
// verbatim).
type Matcher interface {
	CalculateScore(ctx context.Context, received, expected string, vars map[string]any) (Score, error)
}
