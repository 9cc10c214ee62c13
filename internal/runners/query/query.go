// internal/runners/query/query.go
// Package query grades generated queries by executing them. The agent's
// output and the spec's gold query both run against the live cluster; row
// equality passes outright, anything else falls back to graded scoring.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/k0kubun/pp"

	"github.com/askbench/askbench/internal/fixtures"
	"github.com/askbench/askbench/internal/logging"
	"github.com/askbench/askbench/internal/matchers"
	"github.com/askbench/askbench/internal/providers"
	"github.com/askbench/askbench/internal/runner"
	"github.com/askbench/askbench/internal/search"
)

// passThreshold is the authoritative correctness bar when rows differ.
const passThreshold = 0.8

// Verifier executes queries against the cluster for secondary verification.
type Verifier interface {
	QueryPPL(ctx context.Context, query string) (*search.QueryResponse, error)
	QuerySQL(ctx context.Context, query string) (*search.QueryResponse, error)
}

// StateManager provisions fixture state for a group.
type StateManager interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, groups []string, options fixtures.CreateOptions) error
	Delete(ctx context.Context, groups []string) error
}

// Strategy evaluates query-generation specs.
type Strategy struct {
	cluster      Verifier
	state        StateManager
	grader       matchers.Matcher
	keepFixtures bool
	debug        bool
}

// New builds the query strategy. The grader is the authoritative correctness
// scorer applied when result rows differ; state may be nil when fixture
// provisioning is managed externally.
func New(cluster Verifier, state StateManager, grader matchers.Matcher, keepFixtures, debug bool) *Strategy {
	return &Strategy{
		cluster:      cluster,
		state:        state,
		grader:       grader,
		keepFixtures: keepFixtures,
		debug:        debug,
	}
}

func (s *Strategy) Name() string { return "QueryRunner" }

// BuildInput asks the agent the spec's question, with the target index
// available as a variable.
func (s *Strategy) BuildInput(spec runner.Spec) (string, providers.CallContext) {
	return spec.Question, providers.CallContext{Vars: map[string]any{"index": spec.Index}}
}

// BeforeAll provisions the group's fixture indices.
func (s *Strategy) BeforeAll(ctx context.Context, stateKey string) error {
	if s.state == nil || stateKey == runner.DefaultStateKey {
		return nil
	}
	if err := s.state.Init(ctx); err != nil {
		return err
	}
	return s.state.Create(ctx, []string{stateKey}, fixtures.CreateOptions{IgnoreExisting: true})
}

// AfterAll tears the group's fixtures back down unless they are kept for
// inspection.
func (s *Strategy) AfterAll(ctx context.Context, stateKey string) error {
	if s.state == nil || s.keepFixtures || stateKey == runner.DefaultStateKey {
		return nil
	}
	return s.state.Delete(ctx, []string{stateKey})
}

// Evaluate executes the generated query and the gold query, then compares
// result rows. Equal rows score 1. Unequal rows get a lexical edit-distance
// diagnostic plus the grader's authoritative correctness score, passing at
// the threshold. Execution failures are graded results, not run errors, with
// the failing side recorded unambiguously.
func (s *Strategy) Evaluate(ctx context.Context, received *providers.Response, spec runner.Spec) (*runner.Result, error) {
	generated := received.Output

	actual, err := s.cluster.QueryPPL(ctx, generated)
	if err != nil {
		return queryFailure(
			fmt.Sprintf("failed to execute query %q: %v", generated, err),
			backendErrorType(err),
		), nil
	}

	expected, err := s.runGold(ctx, spec)
	if err != nil {
		logging.LogEvent("[%s] invalid gold query: %s", spec.ID, spec.GoldQuery)
		return queryFailure(
			fmt.Sprintf("failed to execute gold query %q: %v", spec.GoldQuery, err),
			"gold query error",
		), nil
	}

	if rowsEqual(actual.Datarows, expected.Datarows) {
		return &runner.Result{
			Pass:    true,
			Score:   1,
			Message: func() string { return fmt.Sprintf("expected %s to match %s", generated, spec.GoldQuery) },
			Extras:  map[string]any{"editDistance": 1.0},
		}, nil
	}

	actualRows := serializeRows(actual.Datarows)
	expectedRows := serializeRows(expected.Datarows)
	editDistance := matchers.Similarity(actualRows, expectedRows)
	if s.debug {
		pp.Println(map[string]any{
			"id":       spec.ID,
			"actual":   actual.Datarows,
			"expected": expected.Datarows,
		})
	}

	graded, err := s.grader.CalculateScore(ctx, generated, spec.GoldQuery, map[string]any{
		"question": spec.Question,
		"index":    spec.Index,
	})
	if err != nil {
		return nil, err
	}

	extras := map[string]any{"editDistance": editDistance}
	for key, value := range graded.Extras {
		extras[key] = value
	}
	return &runner.Result{
		Pass:  graded.Value >= passThreshold,
		Score: graded.Value,
		Message: func() string {
			return fmt.Sprintf("rows differ for %q vs gold %q, correctness score %.2f", generated, spec.GoldQuery, graded.Value)
		},
		Extras: extras,
	}, nil
}

// runGold executes the gold query in its declared dialect, or sniffs the
// dialect from the query text when the spec is silent.
func (s *Strategy) runGold(ctx context.Context, spec runner.Spec) (*search.QueryResponse, error) {
	dialect := strings.ToLower(strings.TrimSpace(spec.GoldDialect))
	if dialect == "" {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(spec.GoldQuery)), "SELECT") {
			dialect = "sql"
		} else {
			dialect = "ppl"
		}
	}

	switch dialect {
	case "sql":
		return s.cluster.QuerySQL(ctx, spec.GoldQuery)
	case "ppl":
		return s.cluster.QueryPPL(ctx, spec.GoldQuery)
	default:
		return nil, fmt.Errorf("unknown gold query dialect %q", dialect)
	}
}

// rowsEqual compares datarows structurally and order-sensitively: the row
// order a query produces is part of its answer.
func rowsEqual(a, b [][]any) bool {
	if len(a) != len(b) {
		return false
	}
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}

func serializeRows(rows [][]any) string {
	var builder strings.Builder
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			continue
		}
		builder.Write(line)
		builder.WriteByte('\n')
	}
	return builder.String()
}

func queryFailure(message, exception string) *runner.Result {
	return &runner.Result{
		Pass:    false,
		Score:   0,
		Message: func() string { return message },
		Extras:  map[string]any{"exception": exception},
	}
}

// backendErrorType names the failing side of a generated-query execution.
func backendErrorType(err error) string {
	if respErr, ok := err.(*search.ResponseError); ok && respErr.Type != "" {
		return respErr.Type
	}
	return "error"
}
