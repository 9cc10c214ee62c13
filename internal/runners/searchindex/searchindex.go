// internal/runners/searchindex/searchindex.go
// Package searchindex grades agents that answer by searching an index. The
// spec's gold DSL query runs against the cluster and its hits, serialized one
// per line, are compared lexically with the agent's output.
package searchindex

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

// passThreshold is the edit-distance similarity an output must reach.
const passThreshold = 0.9

// Searcher executes gold DSL queries for verification.
type Searcher interface {
	SearchDSL(ctx context.Context, index, query string) (*search.SearchResponse, error)
}

// StateManager provisions fixture state for a group.
type StateManager interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, groups []string, options fixtures.CreateOptions) error
	Delete(ctx context.Context, groups []string) error
}

// Strategy evaluates search-index specs.
type Strategy struct {
	cluster      Searcher
	state        StateManager
	keepFixtures bool
	debug        bool
}

// New builds the searchindex strategy; state may be nil when fixture
// provisioning is managed externally.
func New(cluster Searcher, state StateManager, keepFixtures, debug bool) *Strategy {
	return &Strategy{cluster: cluster, state: state, keepFixtures: keepFixtures, debug: debug}
}

func (s *Strategy) Name() string { return "SearchIndexRunner" }

// BuildInput asks the agent the spec's question with the target index as a
// variable.
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

// AfterAll tears the group's fixtures back down unless they are kept.
func (s *Strategy) AfterAll(ctx context.Context, stateKey string) error {
	if s.state == nil || s.keepFixtures || stateKey == runner.DefaultStateKey {
		return nil
	}
	return s.state.Delete(ctx, []string{stateKey})
}

// Evaluate runs the gold DSL query and grades the agent output by normalized
// edit distance against the serialized hits. A gold-query failure is a graded
// result with the failing side recorded in extras.
func (s *Strategy) Evaluate(ctx context.Context, received *providers.Response, spec runner.Spec) (*runner.Result, error) {
	expected, err := s.cluster.SearchDSL(ctx, spec.Index, spec.GoldQuery)
	if err != nil {
		logging.LogEvent("[%s] invalid gold query: %s", spec.ID, spec.GoldQuery)
		return &runner.Result{
			Pass:    false,
			Score:   0,
			Message: func() string { return fmt.Sprintf("failed to execute gold query: %v", err) },
			Extras:  map[string]any{"exception": goldExceptionType(err)},
		}, nil
	}

	expectedText := serializeHits(expected)
	if s.debug {
		pp.Println(map[string]any{"id": spec.ID, "received": received.Output, "expected": expectedText})
	}

	editDistance := matchers.Similarity(received.Output, expectedText)
	return &runner.Result{
		Pass:    editDistance >= passThreshold,
		Score:   editDistance,
		Message: func() string { return fmt.Sprintf("score %.2f is below %.2f", editDistance, passThreshold) },
		Extras:  map[string]any{"editDistance": editDistance, "exception": nil},
	}, nil
}

// serializeHits renders search hits one JSON object per line in a stable
// field order.
func serializeHits(resp *search.SearchResponse) string {
	var builder strings.Builder
	for _, hit := range resp.Hits.Hits {
		line, err := json.Marshal(struct {
			Index  string          `json:"_index"`
			Source json.RawMessage `json:"_source"`
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
		}{hit.Index, hit.Source, hit.ID, hit.Score})
		if err != nil {
			continue
		}
		builder.Write(line)
		builder.WriteByte('\n')
	}
	return builder.String()
}

// goldExceptionType attributes a gold-query failure: backend error types pass
// through, anything else is a plain gold query error.
func goldExceptionType(err error) any {
	if respErr, ok := err.(*search.ResponseError); ok && respErr.Type != "" {
		return respErr.Type
	}
	return "gold query error"
}
