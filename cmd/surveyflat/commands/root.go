package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"surveyflat/lib/tableio"
	"surveyflat/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	verbose     bool
	dumpHttpDir string
	formatName  string
	outTarget   string
	dropColumns []string
)

var rootCmd = &cobra.Command{
	Use:   "surveyflat",
	Short: "surveyflat fetches SurveyMonkey surveys and flattens them into tables.",
	Long: strings.TrimSpace(`
surveyflat fetches the details and the bulk responses of a SurveyMonkey survey,
flattens them into one row per question/answer option and one row per answer,
and joins both tables for analysis.

Credentials are read from credentials.json5, looked up from the working
directory upwards unless --config is given.`),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)
		_, err := tableio.ParseFormat(formatName)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to the credentials file (default: credentials.json5 searched upwards).")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
	flags.StringVar(&dumpHttpDir, "dump-http", "", "Write every HTTP request/response pair to this directory.")
	flags.StringVarP(&formatName, "format", "f", string(tableio.FormatTable), fmt.Sprintf("Output format, one of %v.", tableio.Formats))
	flags.StringVarP(&outTarget, "out", "o", "-", "Where to write the table: a file path, s3://bucket/key or - for stdout.")
	flags.StringSliceVar(&dropColumns, "drop", nil, "Columns to leave out of the output.")
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
