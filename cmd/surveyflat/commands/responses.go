package commands

import (
	"surveyflat/internal/pipeline"

	"github.com/spf13/cobra"
)

// flags shared by every command that pages through bulk responses
type responseFlags struct {
	skipEmpty bool
	maxPages  int
}

func (f *responseFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.skipEmpty, "skip-empty", false, "Skip respondents and result pages without answers instead of failing.")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "Stop with an error after this many result pages (default from config or 1000).")
}

var responsesFlags responseFlags

func init() {
	responsesFlags.register(responsesCmd)
	rootCmd.AddCommand(responsesCmd)
}

var responsesCmd = &cobra.Command{
	Use:   "responses <survey_id> [--skip-empty] [--max-pages N]",
	Short: "Fetches every bulk response of a survey as one row per answer.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient(responsesFlags.maxPages)
		if err != nil {
			return err
		}
		table, err := pipeline.Responses(cmd.Context(), client, args[0], pipeline.Options{
			SkipEmpty: responsesFlags.skipEmpty,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.Context(), cfg, table)
	},
}
