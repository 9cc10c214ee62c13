// internal/runners/query/query_test.go
package query

import (
	"context"
	"errors"
	"testing"

	"github.com/askbench/askbench/internal/fixtures"
	"github.com/askbench/askbench/internal/matchers"
	"github.com/askbench/askbench/internal/providers"
	"github.com/askbench/askbench/internal/runner"
	"github.com/askbench/askbench/internal/search"
)

type fakeVerifier struct {
	ppl    map[string]*search.QueryResponse
	sql    map[string]*search.QueryResponse
	pplErr map[string]error
	sqlErr map[string]error
}

func (f *fakeVerifier) QueryPPL(_ context.Context, query string) (*search.QueryResponse, error) {
	if err, ok := f.pplErr[query]; ok {
		return nil, err
	}
	if resp, ok := f.ppl[query]; ok {
		return resp, nil
	}
	return &search.QueryResponse{}, nil
}

func (f *fakeVerifier) QuerySQL(_ context.Context, query string) (*search.QueryResponse, error) {
	if err, ok := f.sqlErr[query]; ok {
		return nil, err
	}
	if resp, ok := f.sql[query]; ok {
		return resp, nil
	}
	return &search.QueryResponse{}, nil
}

type fakeState struct {
	inited  bool
	created []string
	deleted []string
}

func (f *fakeState) Init(context.Context) error { f.inited = true; return nil }

func (f *fakeState) Create(_ context.Context, groups []string, _ fixtures.CreateOptions) error {
	f.created = append(f.created, groups...)
	return nil
}

func (f *fakeState) Delete(_ context.Context, groups []string) error {
	f.deleted = append(f.deleted, groups...)
	return nil
}

type fixedGrader struct {
	score float64
	err   error
	calls int
}

func (g *fixedGrader) CalculateScore(context.Context, string, string, map[string]any) (matchers.Score, error) {
	g.calls++
	return matchers.Score{Value: g.score}, g.err
}

func rows(values ...any) *search.QueryResponse {
	resp := &search.QueryResponse{}
	for _, value := range values {
		resp.Datarows = append(resp.Datarows, []any{value})
	}
	resp.Total = len(resp.Datarows)
	resp.Size = len(resp.Datarows)
	return resp
}

func response(output string) *providers.Response {
	return &providers.Response{Output: output}
}

func TestEvaluateEqualRowsPass(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{
		ppl: map[string]*search.QueryResponse{
			"source=logs | stats count()": rows(float64(42)),
			"source=logs | stats count() by level | stats count()": rows(float64(42)),
		},
	}
	grader := &fixedGrader{score: 0}
	strategy := New(verifier, nil, grader, false, false)

	spec := runner.Spec{ID: "q1", GoldQuery: "source=logs | stats count() by level | stats count()"}
	result, err := strategy.Evaluate(context.Background(), response("source=logs | stats count()"), spec)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !result.Pass || result.Score != 1 {
		t.Fatalf("result = %+v", result)
	}
	if grader.calls != 0 {
		t.Fatalf("grader called %d times on equal rows", grader.calls)
	}
}

func TestEvaluateUnequalRowsUseGraderThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		score    float64
		wantPass bool
	}{
		{"above threshold", 0.9, true},
		{"at threshold", 0.8, true},
		{"below threshold", 0.7, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verifier := &fakeVerifier{
				ppl: map[string]*search.QueryResponse{
					"generated": rows("a", "b"),
					"gold":      rows("a", "c"),
				},
			}
			strategy := New(verifier, nil, &fixedGrader{score: tt.score}, false, false)

			spec := runner.Spec{ID: "q1", GoldQuery: "gold"}
			result, err := strategy.Evaluate(context.Background(), response("generated"), spec)
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}
			if result.Pass != tt.wantPass || result.Score != tt.score {
				t.Fatalf("result = %+v", result)
			}
			if _, ok := result.Extras["editDistance"]; !ok {
				t.Fatalf("extras = %v, missing editDistance", result.Extras)
			}
		})
	}
}

func TestEvaluateGeneratedQueryFailure(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{
		pplErr: map[string]error{
			"generated": &search.ResponseError{StatusCode: 400, Type: "IllegalArgumentException", Reason: "bad field"},
		},
	}
	strategy := New(verifier, nil, &fixedGrader{}, false, false)

	result, err := strategy.Evaluate(context.Background(), response("generated"), runner.Spec{ID: "q1", GoldQuery: "gold"})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Pass || result.Score != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.Extras["exception"] != "IllegalArgumentException" {
		t.Fatalf("extras = %v", result.Extras)
	}
}

func TestEvaluateGoldQueryFailure(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{
		ppl: map[string]*search.QueryResponse{"generated": rows("a")},
		sqlErr: map[string]error{
			"SELECT count(*) FROM logs": errors.New("parse failure"),
		},
	}
	strategy := New(verifier, nil, &fixedGrader{}, false, false)

	spec := runner.Spec{ID: "q1", GoldQuery: "SELECT count(*) FROM logs"}
	result, err := strategy.Evaluate(context.Background(), response("generated"), spec)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Extras["exception"] != "gold query error" {
		t.Fatalf("extras = %v", result.Extras)
	}
}

func TestRunGoldDialectSelection(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{
		sql: map[string]*search.QueryResponse{
			"SELECT * FROM logs": rows("sql"),
			"source=logs":        rows("forced-sql"),
		},
		ppl: map[string]*search.QueryResponse{
			"source=logs | head 5": rows("ppl"),
		},
	}
	strategy := New(verifier, nil, &fixedGrader{}, false, false)

	tests := []struct {
		name    string
		spec    runner.Spec
		wantRow any
	}{
		{"select sniffs sql", runner.Spec{GoldQuery: "SELECT * FROM logs"}, "sql"},
		{"default is ppl", runner.Spec{GoldQuery: "source=logs | head 5"}, "ppl"},
		{"explicit dialect wins", runner.Spec{GoldQuery: "source=logs", GoldDialect: "sql"}, "forced-sql"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := strategy.runGold(context.Background(), tt.spec)
			if err != nil {
				t.Fatalf("runGold returned error: %v", err)
			}
			if resp.Datarows[0][0] != tt.wantRow {
				t.Fatalf("datarows = %v", resp.Datarows)
			}
		})
	}

	if _, err := strategy.runGold(context.Background(), runner.Spec{GoldQuery: "q", GoldDialect: "cypher"}); err == nil {
		t.Fatal("runGold accepted unknown dialect")
	}
}

func TestGraderErrorPropagates(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{
		ppl: map[string]*search.QueryResponse{
			"generated": rows("a"),
			"gold":      rows("b"),
		},
	}
	strategy := New(verifier, nil, &fixedGrader{err: errors.New("judge unreachable")}, false, false)

	if _, err := strategy.Evaluate(context.Background(), response("generated"), runner.Spec{GoldQuery: "gold"}); err == nil {
		t.Fatal("expected grader error to propagate")
	}
}

func TestHooksProvisionFixtures(t *testing.T) {
	t.Parallel()

	state := &fakeState{}
	strategy := New(&fakeVerifier{}, state, &fixedGrader{}, false, false)

	if err := strategy.BeforeAll(context.Background(), "logs"); err != nil {
		t.Fatalf("BeforeAll returned error: %v", err)
	}
	if !state.inited || len(state.created) != 1 || state.created[0] != "logs" {
		t.Fatalf("state = %+v", state)
	}

	if err := strategy.AfterAll(context.Background(), "logs"); err != nil {
		t.Fatalf("AfterAll returned error: %v", err)
	}
	if len(state.deleted) != 1 {
		t.Fatalf("deleted = %v", state.deleted)
	}
}

func TestHooksSkipDefaultGroupAndKeepFixtures(t *testing.T) {
	t.Parallel()

	state := &fakeState{}
	strategy := New(&fakeVerifier{}, state, &fixedGrader{}, true, false)

	if err := strategy.BeforeAll(context.Background(), runner.DefaultStateKey); err != nil {
		t.Fatalf("BeforeAll returned error: %v", err)
	}
	if state.inited {
		t.Fatal("default group provisioned fixtures")
	}

	if err := strategy.AfterAll(context.Background(), "logs"); err != nil {
		t.Fatalf("AfterAll returned error: %v", err)
	}
	if len(state.deleted) != 0 {
		t.Fatal("fixtures deleted despite keepFixtures")
	}
}

func TestRowsEqualOrderSensitive(t *testing.T) {
	t.Parallel()

	a := [][]any{{"x"}, {"y"}}
	b := [][]any{{"y"}, {"x"}}
	if rowsEqual(a, b) {
		t.Fatal("row order ignored")
	}
	if !rowsEqual(a, [][]any{{"x"}, {"y"}}) {
		t.Fatal("identical rows reported unequal")
	}
}
