package tableio

import (
	"context"
	"database/sql"
	"path/filepath"
	"surveyflat/lib/flatten"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteTable(t *testing.T) {
	db, err := DatabaseConfig{Url: ":memory:"}.OpenDB()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, WriteTable(ctx, db, "survey_details", sampleTable()))

	rows, err := db.Query(`SELECT question_id, choice_text, question_position FROM survey_details ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	type result struct {
		questionId string
		choiceText sql.NullString
		position   string
	}
	var results []result
	for rows.Next() {
		var r result
		require.NoError(t, rows.Scan(&r.questionId, &r.choiceText, &r.position))
		results = append(results, r)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []result{
		{questionId: "Q1", choiceText: sql.NullString{String: "Yes, please", Valid: true}, position: "1"},
		{questionId: "Q2", position: "2"},
	}, results)
}

func TestWriteTableReplaces(t *testing.T) {
	db, err := DatabaseConfig{Url: ":memory:"}.OpenDB()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, WriteTable(ctx, db, "merged", sampleTable()))

	smaller := flatten.NewTable()
	smaller.Append(flatten.Record{{Name: `odd "name"`, Value: "x"}})
	require.NoError(t, WriteTable(ctx, db, "merged", smaller))

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM merged`).Scan(&count))
	require.Equal(t, 1, count)

	var value string
	require.NoError(t, db.QueryRow(`SELECT "odd ""name""" FROM merged`).Scan(&value))
	require.Equal(t, "x", value)

	// a table without columns only drops the previous contents
	require.NoError(t, WriteTable(ctx, db, "merged", flatten.NewTable()))
	err = db.QueryRow(`SELECT count(*) FROM merged`).Scan(&count)
	require.Error(t, err)
}

func TestOpenDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "export.db")
	db, err := DatabaseConfig{Url: path}.OpenDB()
	require.NoError(t, err)
	require.NoError(t, WriteTable(context.Background(), db, "survey_details", sampleTable()))
	require.NoError(t, db.Close())

	db, err = DatabaseConfig{Url: path}.OpenDB()
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM survey_details`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestDatabaseConfigRemote(t *testing.T) {
	require.True(t, DatabaseConfig{Url: "libsql://survey-db.turso.io"}.remote())
	require.True(t, DatabaseConfig{Url: "https://survey-db.turso.io"}.remote())
	require.False(t, DatabaseConfig{Url: "out/export.db"}.remote())
	require.False(t, DatabaseConfig{Url: ":memory:"}.remote())

	_, err := DatabaseConfig{}.OpenDB()
	require.Error(t, err)
}
