// internal/runners/qa/qa_test.go
package qa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askbench/askbench/internal/matchers"
	"github.com/askbench/askbench/internal/providers"
	"github.com/askbench/askbench/internal/runner"
)

type stubFactuality struct {
	graded   matchers.Graded
	err      error
	question string
}

func (s *stubFactuality) Factuality(_ context.Context, question, _, _ string) (matchers.Graded, error) {
	s.question = question
	return s.graded, s.err
}

func TestBuildInputUsesQuestion(t *testing.T) {
	t.Parallel()

	strategy := New(&stubFactuality{})
	prompt, callCtx := strategy.BuildInput(runner.Spec{Question: "how many nodes?", Vars: map[string]any{"k": "v"}})
	if prompt != "how many nodes?" {
		t.Fatalf("prompt = %q", prompt)
	}
	if callCtx.StringVar("k") != "v" {
		t.Fatalf("vars = %v", callCtx.Vars)
	}
}

func TestEvaluatePassesJudgeVerdictThrough(t *testing.T) {
	t.Parallel()

	judge := &stubFactuality{graded: matchers.Graded{Pass: true, Score: 1, Reason: "agrees"}}
	strategy := New(judge)

	spec := runner.Spec{ID: "qa1", Question: "how many nodes?", Expected: "three"}
	result, err := strategy.Evaluate(context.Background(), &providers.Response{Output: "there are three"}, spec)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !result.Pass || result.Score != 1 {
		t.Fatalf("result = %+v", result)
	}
	if judge.question != "how many nodes?" {
		t.Fatalf("judge got question %q", judge.question)
	}
	if msg := result.Message(); !strings.Contains(msg, "agrees") {
		t.Fatalf("message = %q", msg)
	}
}

func TestEvaluateFailingVerdict(t *testing.T) {
	t.Parallel()

	judge := &stubFactuality{graded: matchers.Graded{Pass: false, Score: 0, Reason: "disagrees"}}
	strategy := New(judge)

	result, err := strategy.Evaluate(context.Background(), &providers.Response{Output: "five"}, runner.Spec{Expected: "three"})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Pass || result.Score != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestEvaluateJudgeErrorPropagates(t *testing.T) {
	t.Parallel()

	strategy := New(&stubFactuality{err: errors.New("judge unreachable")})
	if _, err := strategy.Evaluate(context.Background(), &providers.Response{Output: "x"}, runner.Spec{}); err == nil {
		t.Fatal("expected judge error to propagate")
	}
}
