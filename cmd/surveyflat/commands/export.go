package commands

import (
	"context"
	"fmt"
	"log/slog"
	"surveyflat/internal/pipeline"
	"surveyflat/lib/flatten"
	"surveyflat/lib/tableio"

	"github.com/spf13/cobra"
)

var (
	exportFlags     responseFlags
	exportDb        string
	exportAuthToken string
)

func init() {
	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVar(&exportDb, "db", "", "sqlite file or libsql:// url to write to (default from config).")
	exportCmd.Flags().StringVar(&exportAuthToken, "db-auth-token", "", "Auth token for remote libsql databases.")
	rootCmd.AddCommand(exportCmd)
}

func exportResult(ctx context.Context, db tableio.DatabaseConfig, result pipeline.Result) error {
	conn, err := db.OpenDB()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	tables := []struct {
		name  string
		table *flatten.Table
	}{
		{name: "survey_details", table: result.Details},
		{name: "survey_responses", table: result.Responses},
		{name: "survey_merged", table: result.Merged},
	}
	for _, t := range tables {
		t.table.Drop(dropColumns...)
		err = tableio.WriteTable(ctx, conn, t.name, t.table)
		if err != nil {
			return fmt.Errorf("write %s: %w", t.name, err)
		}
		slog.InfoContext(ctx, "exported table", "table", t.name, "rows", t.table.Len())
	}
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export <survey_id> --db <path|libsql://...>",
	Short: "Writes the details, responses and merged tables of a survey to a database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient(exportFlags.maxPages)
		if err != nil {
			return err
		}

		db := cfg.Database
		if exportDb != "" {
			db = tableio.DatabaseConfig{Url: exportDb, AuthToken: exportAuthToken}
		}
		if db.Url == "" {
			return fmt.Errorf("no database given, pass --db or set database.url in the credentials")
		}

		result, err := pipeline.Merge(cmd.Context(), client, args[0], pipeline.Options{
			SkipEmpty: exportFlags.skipEmpty,
		})
		if err != nil {
			return err
		}
		reportMismatch(result)
		return exportResult(cmd.Context(), db, result)
	},
}
