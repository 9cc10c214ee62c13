// internal/commands/root.go
package askbench

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/askbench/askbench/internal/appconfig"
	"github.com/askbench/askbench/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "askbench",
	Short: "askbench — evaluation harness for cluster-backed assistant agents",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := appconfig.Load(cfgFile)
		if err != nil {
			return err
		}

		for _, name := range []string{"debug", "keepFixtures"} {
			if !cmd.Flags().Changed(name) {
				val := viper.GetBool(name)
				_ = cmd.Flags().Set(name, strconv.FormatBool(val))
			}
		}
		for _, name := range []string{"logFile", "fixturesDir", "resultsDir", "packagesDir"} {
			if !cmd.Flags().Changed(name) {
				if val := viper.GetString(name); val != "" {
					_ = cmd.Flags().Set(name, val)
				}
			}
		}

		if cmd.Flags().Changed("debug") {
			cfg.Debug, _ = cmd.Flags().GetBool("debug")
		}
		if cmd.Flags().Changed("keepFixtures") {
			cfg.KeepFixtures, _ = cmd.Flags().GetBool("keepFixtures")
		}
		if val, _ := cmd.Flags().GetString("logFile"); val != "" {
			cfg.LogFile = val
		}
		if val, _ := cmd.Flags().GetString("fixturesDir"); val != "" {
			cfg.FixturesDir = val
		}
		if val, _ := cmd.Flags().GetString("resultsDir"); val != "" {
			cfg.ResultsDir = val
		}
		if val, _ := cmd.Flags().GetString("packagesDir"); val != "" {
			cfg.PackagesDir = val
		}
		currentConfig = &cfg

		if err := logging.Init(currentConfig.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("keepFixtures", false, "leave fixture indices in the cluster after a run")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("fixturesDir", "", "directory holding fixture index groups")
	rootCmd.PersistentFlags().String("resultsDir", "", "directory run results are written under")
	rootCmd.PersistentFlags().String("packagesDir", "", "directory holding external scorer scripts")

	viper.SetEnvPrefix("ASKBENCH")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("keepFixtures", rootCmd.PersistentFlags().Lookup("keepFixtures"))
	_ = viper.BindPFlag("logFile", rootCmd.PersistentFlags().Lookup("logFile"))
	_ = viper.BindPFlag("fixturesDir", rootCmd.PersistentFlags().Lookup("fixturesDir"))
	_ = viper.BindPFlag("resultsDir", rootCmd.PersistentFlags().Lookup("resultsDir"))
	_ = viper.BindPFlag("packagesDir", rootCmd.PersistentFlags().Lookup("packagesDir"))
}
