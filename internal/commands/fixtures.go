// internal/commands/fixtures.go
package askbench

import (
	"github.com/spf13/cobra"

	"github.com/askbench/askbench/internal/fixtures"
	"github.com/askbench/askbench/internal/search"
)

var ignoreExisting bool

// fixturesCmd groups the fixture lifecycle subcommands.
var fixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "Manage fixture index groups in the cluster",
}

var fixturesCreateCmd = &cobra.Command{
	Use:   "create [groups...]",
	Short: "Provision fixture groups (all groups when none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newFixtureManager()
		if err != nil {
			return err
		}
		if err := manager.Init(cmd.Context()); err != nil {
			return err
		}
		return manager.Create(cmd.Context(), args, fixtures.CreateOptions{IgnoreExisting: ignoreExisting})
	},
}

var fixturesDeleteCmd = &cobra.Command{
	Use:   "delete [groups...]",
	Short: "Delete fixture groups from the cluster (all groups when none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newFixtureManager()
		if err != nil {
			return err
		}
		return manager.Delete(cmd.Context(), args)
	},
}

var fixturesDumpCmd = &cobra.Command{
	Use:   "dump <group> <index>...",
	Short: "Dump live indices into the on-disk fixture format",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newFixtureManager()
		if err != nil {
			return err
		}
		return manager.Dump(cmd.Context(), args[0], args[1:])
	},
}

func newFixtureManager() (*fixtures.Manager, error) {
	return fixtures.NewManager(currentConfig, search.New(currentConfig))
}

func init() {
	rootCmd.AddCommand(fixturesCmd)
	fixturesCmd.AddCommand(fixturesCreateCmd)
	fixturesCmd.AddCommand(fixturesDeleteCmd)
	fixturesCmd.AddCommand(fixturesDumpCmd)

	fixturesCreateCmd.Flags().BoolVar(&ignoreExisting, "ignore-existing", false, "skip indices already present in the cluster")
}
