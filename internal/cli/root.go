package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskherald/herald/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "herald",
	Short: "Herald - batch-run event aggregation and summary dispatch",
	Long: `Herald records informational, warning and error events during a batch
task's run, writes them to a per-run log file, and dispatches an end-of-run
summary via e-mail and/or a Mattermost webhook.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.herald/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates the structured logger used for herald's own diagnostics,
// as opposed to the run log the aggregator writes.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
