// internal/commands/run.go
package askbench

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askbench/askbench/internal/fixtures"
	"github.com/askbench/askbench/internal/matchers"
	"github.com/askbench/askbench/internal/providers"
	"github.com/askbench/askbench/internal/runner"
	"github.com/askbench/askbench/internal/runners/qa"
	"github.com/askbench/askbench/internal/runners/query"
	"github.com/askbench/askbench/internal/runners/searchindex"
	"github.com/askbench/askbench/internal/search"
)

// queryScorerScript is the external scorer used for query correctness when no
// judge endpoint is configured.
const queryScorerScript = "query_eval/eval.py"

// runCmd groups the evaluation subcommands.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run evaluation spec files against the configured agent",
}

var runQueryCmd = &cobra.Command{
	Use:   "query [specFiles...]",
	Short: "Evaluate query generation with live secondary verification",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster := search.New(currentConfig)
		manager, err := fixtures.NewManager(currentConfig, cluster)
		if err != nil {
			return err
		}
		grader, err := buildQueryGrader()
		if err != nil {
			return err
		}
		strategy := query.New(cluster, manager, grader, currentConfig.KeepFixtures, currentConfig.Debug)
		return executeRun(cmd, strategy, args)
	},
}

var runQACmd = &cobra.Command{
	Use:   "qa [specFiles...]",
	Short: "Evaluate question answering with a factuality judge",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		judge, err := providers.NewChatProvider(currentConfig)
		if err != nil {
			return err
		}
		strategy := qa.New(matchers.NewJudgeMatcher(judge, 0))
		return executeRun(cmd, strategy, args)
	},
}

var runSearchIndexCmd = &cobra.Command{
	Use:   "searchindex [specFiles...]",
	Short: "Evaluate index search answers against gold DSL queries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cluster := search.New(currentConfig)
		manager, err := fixtures.NewManager(currentConfig, cluster)
		if err != nil {
			return err
		}
		strategy := searchindex.New(cluster, manager, currentConfig.KeepFixtures, currentConfig.Debug)
		return executeRun(cmd, strategy, args)
	},
}

// buildQueryGrader picks the authoritative correctness scorer: the judge
// endpoint when one is configured, the packaged scorer script otherwise.
func buildQueryGrader() (matchers.Matcher, error) {
	if currentConfig.Judge.URL != "" {
		judge, err := providers.NewChatProvider(currentConfig)
		if err != nil {
			return nil, err
		}
		return matchers.NewJudgeMatcher(judge, 0), nil
	}
	return matchers.NewExternalMatcher(currentConfig.PackagesDirPath(), queryScorerScript, "")
}

// executeRun wires a strategy into the runner and reports the outcome.
func executeRun(cmd *cobra.Command, strategy runner.Strategy, specFiles []string) error {
	agent, err := providers.NewAgentProvider(currentConfig)
	if err != nil {
		return err
	}

	sink := runner.NewJSONLSink(currentConfig.ResultsDirPath(), strategy.Name())
	defer sink.Close()

	report, err := runner.New(currentConfig, agent, strategy, sink).Run(cmd.Context(), specFiles)
	if err != nil {
		return err
	}
	if path := sink.Path(); path != "" {
		fmt.Printf("results written to %s\n", path)
	}
	if report.Failed() {
		return errors.New("run finished with failures")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runQueryCmd)
	runCmd.AddCommand(runQACmd)
	runCmd.AddCommand(runSearchIndexCmd)
}
