package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/models"
)

var (
	assessLLM    bool
	assessJSON   bool
	assessRecord bool
)

var assessCmd = &cobra.Command{
	Use:       "assess <schema_type>",
	Short:     "Assess one schema type and print the report.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: schemaTypeArgs(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if assessRecord && !cfg.History.Enabled {
			return fmt.Errorf("--record requires history.enabled in the configuration")
		}

		ctx := cmd.Context()
		e, err := openEngine(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		assess := e.health.Assess
		if assessLLM {
			assess = e.health.AssessLLM
		}
		report, err := assess(ctx, args[0])
		if err != nil {
			return err
		}

		if assessRecord {
			entry, alerts, err := e.history.Record(ctx, report)
			if err != nil {
				return err
			}
			logger.Info("Assessment recorded",
				zap.String("history_id", entry.ID.String()),
				zap.Int("alerts_raised", len(alerts)))
		}

		if assessJSON {
			return writeReportJSON(cmd.OutOrStdout(), report)
		}
		return renderReport(cmd.OutOrStdout(), report)
	},
}

func schemaTypeArgs() []string {
	out := make([]string, len(models.SchemaTypes))
	for i, st := range models.SchemaTypes {
		out[i] = string(st)
	}
	return out
}

func init() {
	assessCmd.Flags().BoolVar(&assessLLM, "llm", false, "let the language model choose dimensions per column")
	assessCmd.Flags().BoolVar(&assessJSON, "json", false, "print the full report as JSON")
	assessCmd.Flags().BoolVar(&assessRecord, "record", false, "store the report in history and evaluate alerts")
	rootCmd.AddCommand(assessCmd)
}
