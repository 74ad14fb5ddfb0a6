package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd prints build information without loading configuration.
var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version of ekaya-health.",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("ekaya-health\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
