package commands

import (
	"log/slog"
	"surveyflat/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	mergeFlags    responseFlags
	mergeMinRatio float64
)

func init() {
	mergeFlags.register(mergeCmd)
	mergeCmd.Flags().Float64Var(&mergeMinRatio, "min-match", 0, "Warn when the join keeps fewer than this share of the smaller table's rows (default 0.5).")
	rootCmd.AddCommand(mergeCmd)
}

func reportMismatch(result pipeline.Result) {
	if result.Mismatch == nil {
		return
	}
	slog.Warn(
		"merged table is much smaller than its inputs, check that question, choice and row ids line up",
		"details", result.Mismatch.LeftRows,
		"responses", result.Mismatch.RightRows,
		"merged", result.Mismatch.MergedRows,
	)
}

var mergeCmd = &cobra.Command{
	Use:   "merge <survey_id>",
	Short: "Fetches details and responses of a survey and joins them into one table.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient(mergeFlags.maxPages)
		if err != nil {
			return err
		}
		result, err := pipeline.Merge(cmd.Context(), client, args[0], pipeline.Options{
			SkipEmpty:     mergeFlags.skipEmpty,
			MinMatchRatio: mergeMinRatio,
		})
		if err != nil {
			return err
		}
		reportMismatch(result)
		return writeOutput(cmd.Context(), cfg, result.Merged)
	},
}
