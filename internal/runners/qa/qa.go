// internal/runners/qa/qa.go
// Package qa grades free-form question answering with a factuality judge.
package qa

import (
	"context"
	"fmt"

	"github.com/askbench/askbench/internal/matchers"
	"github.com/askbench/askbench/internal/providers"
	"github.com/askbench/askbench/internal/runner"
)

// FactualityGrader grades an answer against the expected one for a question.
type FactualityGrader interface {
	Factuality(ctx context.Context, question, received, expected string) (matchers.Graded, error)
}

// Strategy evaluates question-answering specs.
type Strategy struct {
	judge FactualityGrader
}

// New builds the qa strategy around a factuality judge.
func New(judge FactualityGrader) *Strategy {
	return &Strategy{judge: judge}
}

func (s *Strategy) Name() string { return "QARunner" }

// BuildInput asks the agent the spec's question directly.
func (s *Strategy) BuildInput(spec runner.Spec) (string, providers.CallContext) {
	return spec.Question, providers.CallContext{Vars: spec.Vars}
}

// Evaluate delegates to the factuality judge: the answer passes when it
// agrees with or extends the expected answer.
func (s *Strategy) Evaluate(ctx context.Context, received *providers.Response, spec runner.Spec) (*runner.Result, error) {
	graded, err := s.judge.Factuality(ctx, spec.Question, received.Output, spec.Expected)
	if err != nil {
		return nil, err
	}

	return &runner.Result{
		Pass:  graded.Pass,
		Score: graded.Score,
		Message: func() string {
			return fmt.Sprintf("received: %s, expected: %s, judge: %s", received.Output, spec.Expected, graded.Reason)
		},
		Extras: map[string]any{"reason": graded.Reason},
	}, nil
}
