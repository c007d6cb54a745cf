package commands

import (
	"surveyflat/internal/pipeline"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(detailsCmd)
}

var detailsCmd = &cobra.Command{
	Use:   "details <survey_id>",
	Short: "Fetches a survey's pages and questions as one row per question/answer option.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient(0)
		if err != nil {
			return err
		}
		table, err := pipeline.Details(cmd.Context(), client, args[0], pipeline.Options{})
		if err != nil {
			return err
		}
		return writeOutput(cmd.Context(), cfg, table)
	},
}
