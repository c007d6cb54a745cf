package tableio

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"surveyflat/lib/flatten"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("lib/tableio")

// DatabaseConfig points at either a local sqlite file or a remote libsql
// database (libsql://, https:// or wss:// urls).
type DatabaseConfig struct {
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (config DatabaseConfig) remote() bool {
	u, err := url.Parse(config.Url)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "libsql", "http", "https", "ws", "wss":
		return true
	}
	return false
}

func (config DatabaseConfig) OpenDB() (*sql.DB, error) {
	if config.Url == "" {
		return nil, fmt.Errorf("a database path or url was not specified")
	}

	if config.remote() {
		dsn := config.Url
		if config.AuthToken != "" {
			u, err := url.Parse(config.Url)
			if err != nil {
				return nil, err
			}
			query := u.Query()
			query.Set("authToken", config.AuthToken)
			u.RawQuery = query.Encode()
			dsn = u.String()
		}
		return sql.Open("libsql", dsn)
	}

	path := config.Url
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps writes serialized and :memory: databases alive
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// WriteTable replaces the sql table called name with the contents of t. Every
// column is stored as TEXT, absent and null cells become NULL.
func WriteTable(ctx context.Context, db *sql.DB, name string, t *flatten.Table) error {
	ctx, span := tracer.Start(ctx, "WriteTable")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", name),
		attribute.Int("rows", t.Len()),
	)

	err := writeTable(ctx, db, name, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write table")
		return err
	}
	return nil
}

func writeTable(ctx context.Context, db *sql.DB, name string, t *flatten.Table) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name))
	if err != nil {
		return err
	}

	columns := t.Columns()
	if len(columns) == 0 {
		slog.DebugContext(ctx, "table has no columns, nothing to create", "table", name)
		return tx.Commit()
	}

	defs := make([]string, len(columns))
	names := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quoteIdent(c)
		defs[i] = names[i] + " TEXT"
		params[i] = "?"
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE %s (%s)",
		quoteIdent(name), strings.Join(defs, ", "),
	))
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(names, ", "), strings.Join(params, ", "),
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for i := 0; i < t.Len(); i++ {
		for j, c := range columns {
			v, ok := t.Get(i, c)
			if !ok || v == nil {
				args[j] = nil
				continue
			}
			args[j] = flatten.FormatValue(v)
		}
		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			return fmt.Errorf("insert row %d into %s: %w", i, name, err)
		}
	}

	return tx.Commit()
}
