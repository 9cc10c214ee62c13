// internal/runner/runner.go
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/askbench/askbench/internal/appconfig"
	"github.com/askbench/askbench/internal/logging"
	"github.com/askbench/askbench/internal/pool"
	"github.com/askbench/askbench/internal/providers"
)

// Strategy supplies the evaluation-specific half of a run: how to turn a spec
// into a provider call, and how to grade the provider's output.
type Strategy interface {
	// Name identifies the strategy; it names the results subdirectory.
	Name() string
	// BuildInput derives the provider prompt and call context from a spec.
	BuildInput(spec Spec) (string, providers.CallContext)
	// Evaluate grades the provider response against the spec. It is only
	// called when the provider produced usable output.
	Evaluate(ctx context.Context, received *providers.Response, spec Spec) (*Result, error)
}

// GroupHooks is implemented by strategies that need per-state setup and
// teardown, typically fixture provisioning.
type GroupHooks interface {
	BeforeAll(ctx context.Context, stateKey string) error
	AfterAll(ctx context.Context, stateKey string) error
}

// GroupReport is the outcome of one state group.
type GroupReport struct {
	StateKey string
	Summary  Summary
	// SetupErr is set when the group's BeforeAll failed; its specs were not
	// run.
	SetupErr error
}

// Report is the outcome of a whole run.
type Report struct {
	Groups []GroupReport
}

// Failed reports whether any group had failing specs or failed to set up.
func (r *Report) Failed() bool {
	for _, group := range r.Groups {
		if group.SetupErr != nil || group.Summary.PassRate < 1 {
			return true
		}
	}
	return false
}

// Runner executes specs against a provider and grades them with a strategy.
type Runner struct {
	provider providers.ApiProvider
	strategy Strategy
	sink     ResultSink
	pool     *pool.Pool
}

// New builds a Runner with the configured concurrency limit.
func New(cfg *appconfig.Config, provider providers.ApiProvider, strategy Strategy, sink ResultSink) *Runner {
	return &Runner{
		provider: provider,
		strategy: strategy,
		sink:     sink,
		pool:     pool.New(cfg.RunConcurrencyLimit()),
	}
}

var (
	passLine = color.New(color.FgGreen).SprintfFunc()
	failLine = color.New(color.FgRed).SprintfFunc()
)

// Run parses the spec files and executes every group in order. A malformed
// spec file aborts the whole run; a failed group setup only skips that group.
func (r *Runner) Run(ctx context.Context, specFiles []string) (*Report, error) {
	specs, err := ParseSpecFiles(specFiles)
	if err != nil {
		return nil, err
	}

	keys, groups := groupSpecs(specs)
	report := &Report{}
	for _, key := range keys {
		report.Groups = append(report.Groups, r.runGroup(ctx, key, groups[key]))
	}
	return report, nil
}

// runGroup executes one state group: setup once, then all specs concurrently,
// then summary and teardown. Spec goroutines are launched before setup runs
// and block on a one-shot gate, so no spec can observe unprovisioned state.
func (r *Runner) runGroup(ctx context.Context, stateKey string, specs []Spec) GroupReport {
	runCtx := &runContext{}
	hooks, hasHooks := r.strategy.(GroupHooks)

	setupDone := make(chan struct{})
	abort := make(chan struct{})

	var wg sync.WaitGroup
	for _, spec := range specs {
		wg.Add(1)
		go func(spec Spec) {
			defer wg.Done()
			select {
			case <-setupDone:
			case <-abort:
				return
			case <-ctx.Done():
				return
			}
			_ = r.pool.Do(func() error {
				r.executeSpec(ctx, spec, runCtx)
				return nil
			})
		}(spec)
	}

	if hasHooks {
		if err := hooks.BeforeAll(ctx, stateKey); err != nil {
			close(abort)
			wg.Wait()
			logging.LogEvent("state %s setup failed, skipping %d specs: %v", stateKey, len(specs), err)
			return GroupReport{StateKey: stateKey, SetupErr: err}
		}
	}
	close(setupDone)
	wg.Wait()

	summary := Summarize(runCtx.snapshot())
	if summary.Total == 0 {
		logging.LogEvent("state %s produced no results", stateKey)
	} else {
		logging.LogEvent("%s", summary.String())
		fmt.Println(summary.Render(stateKey))
	}

	if hasHooks {
		if err := hooks.AfterAll(ctx, stateKey); err != nil {
			logging.LogEvent("state %s teardown failed: %v", stateKey, err)
		}
	}
	return GroupReport{StateKey: stateKey, Summary: summary}
}

// executeSpec runs one spec end to end: provider call, grading, persistence,
// and the reported pass/fail line. Every path records exactly one metadata
// entry.
func (r *Runner) executeSpec(ctx context.Context, spec Spec, runCtx *runContext) {
	logging.LogEvent("running test %s", spec.ID)

	prompt, callCtx := r.strategy.BuildInput(spec)
	start := time.Now()
	received, callErr := r.provider.CallApi(ctx, prompt, callCtx)
	executionMs := time.Since(start).Milliseconds()

	var result *Result
	var output, errText string
	switch {
	case callErr != nil:
		errText = callErr.Error()
		result = taggedFailure(errText, "api_error")
	case received == nil:
		// A provider returning neither response nor error is an empty result.
		result = taggedFailure("result is empty", "empty_output")
	case received.Error != nil:
		output = received.Output
		errText = received.Error.Error()
		result = taggedFailure(errText, "api_error")
	case received.Output == "":
		result = taggedFailure("result is empty", "empty_output")
	default:
		output = received.Output
		result = r.evaluate(ctx, received, spec)
	}

	metadata := buildMetadata(spec, output, errText, result, executionMs)
	runCtx.append(metadata)
	if err := r.sink.Persist(metadata); err != nil {
		// Observability is best-effort: a result we cannot write is still a
		// result.
		logging.LogEvent("failed to persist result for %s: %v", spec.ID, err)
	}

	if result.Pass {
		logging.LogEvent("%s", passLine("PASS %s score=%.2f", spec.ID, result.Score))
	} else {
		reason := ""
		if result.Message != nil {
			reason = result.Message()
		}
		logging.LogEvent("%s", failLine("FAIL %s score=%.2f %s", spec.ID, result.Score, reason))
	}
}

// evaluate runs the strategy's grading step, converting panics and errors
// into zero-score failures so one bad evaluation cannot take down the run.
func (r *Runner) evaluate(ctx context.Context, received *providers.Response, spec Spec) (result *Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = taggedFailure(
				fmt.Sprintf("Evaluation failed to run: %s", truncate(fmt.Sprint(recovered))),
				"evaluation_error",
			)
		}
	}()

	evaluated, err := r.strategy.Evaluate(ctx, received, spec)
	if err != nil {
		return taggedFailure(
			fmt.Sprintf("Evaluation failed to run: %s", truncate(err.Error())),
			"evaluation_error",
		)
	}
	return evaluated
}

// taggedFailure builds a zero-score failing result tagged with its error
// category.
func taggedFailure(message, tag string) *Result {
	return &Result{
		Pass:    false,
		Score:   0,
		Message: func() string { return message },
		Extras:  map[string]any{tag: true},
	}
}

// truncate bounds long error text, keeping the head and tail.
func truncate(text string) string {
	const limit = 1000
	if len(text) < limit {
		return text
	}
	return text[:500] + "...truncated..." + text[len(text)-500:]
}
