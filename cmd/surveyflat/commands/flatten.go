package commands

import (
	"errors"
	"fmt"
	"os"
	"surveyflat/internal/pipeline"
	"surveyflat/lib/flatten"
	"surveyflat/lib/tableio"

	"github.com/spf13/cobra"
)

var (
	flattenDetails   string
	flattenResponses []string
	flattenSurveyId  string
	flattenSkipEmpty bool
	flattenTable     string
	flattenDb        string
)

func init() {
	flags := flattenCmd.Flags()
	flags.StringVar(&flattenDetails, "details", "", "Saved survey details payload.")
	flags.StringSliceVar(&flattenResponses, "responses", nil, "Saved bulk response pages, in order.")
	flags.StringVar(&flattenSurveyId, "survey-id", "", "Survey id, defaults to the id in the details payload.")
	flags.BoolVar(&flattenSkipEmpty, "skip-empty", false, "Skip respondents and result pages without answers instead of failing.")
	flags.StringVar(&flattenTable, "table", "merged", "Which table to output: details, responses or merged.")
	flags.StringVar(&flattenDb, "db", "", "Also write all three tables to this sqlite file or libsql:// url.")
	flattenCmd.MarkFlagRequired("details")
	flattenCmd.MarkFlagRequired("responses")
	rootCmd.AddCommand(flattenCmd)
}

func pickTable(result pipeline.Result, name string) (*flatten.Table, error) {
	switch name {
	case "details":
		return result.Details, nil
	case "responses":
		return result.Responses, nil
	case "merged":
		return result.Merged, nil
	}
	return nil, fmt.Errorf("unknown table '%s', expected details, responses or merged", name)
}

var flattenCmd = &cobra.Command{
	Use:   "flatten --details <file> --responses <file>[,<file>...]",
	Short: "Flattens and joins payloads saved earlier, without talking to the API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := pickTable(pipeline.Result{}, flattenTable); err != nil {
			return err
		}
		// credentials are optional offline unless asked for, they only
		// matter for s3 outputs
		cfg, err := loadConfig(configPath)
		if errors.Is(err, os.ErrNotExist) && configPath == "" {
			cfg, err = Config{}, nil
		}
		if err != nil {
			return err
		}

		details, err := pipeline.ReadPayloads(flattenDetails)
		if err != nil {
			return err
		}
		responses, err := pipeline.ReadPayloads(flattenResponses...)
		if err != nil {
			return err
		}

		result, err := pipeline.Offline(cmd.Context(), flattenSurveyId, details[0], responses, pipeline.Options{
			SkipEmpty: flattenSkipEmpty,
		})
		if err != nil {
			return err
		}
		reportMismatch(result)

		if flattenDb != "" {
			err = exportResult(cmd.Context(), tableio.DatabaseConfig{Url: flattenDb}, result)
			if err != nil {
				return err
			}
		}

		table, _ := pickTable(result, flattenTable)
		return writeOutput(cmd.Context(), cfg, table)
	},
}
