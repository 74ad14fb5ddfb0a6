// Package cmd holds the ekaya-health command line: the HTTP/MCP server,
// one-off assessments and engine-store migrations.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/config"
	"github.com/ekaya-inc/ekaya-health/pkg/logging"
)

// version is replaced by Execute with the value set at build time.
var version = "dev"

// configPath is the --config flag.
var configPath string

// cfg and logger are populated by sharedSetup before any command runs.
var (
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:           "ekaya-health",
	Short:         "Assess data quality of safety incident schemas.",
	Long:          `ekaya-health scores safety event tables on completeness, uniqueness, consistency, validity and timeliness.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return sharedSetup()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
}

// sharedSetup loads configuration and builds the root logger.
func sharedSetup() error {
	loaded, err := config.LoadFrom(configPath, version)
	if err != nil {
		return err
	}
	l, err := logging.NewLogger(loaded.Env, loaded.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	cfg, logger = loaded, l
	return nil
}

// Execute runs the root command.
func Execute(v string) error {
	version = v
	rootCmd.Version = v
	return rootCmd.Execute()
}
