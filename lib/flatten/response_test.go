package flatten

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const singleAnswerResponses = `{
	"data": [
		{
			"id": "1001",
			"survey_id": "S1",
			"pages": [{"questions": [{"id": "Q1", "answers": [{"choice_id": "C1"}]}]}]
		}
	],
	"links": {"self": "https://api.example.com/v3/surveys/S1/responses/bulk?page=1"}
}`

func TestFlattenResponsesSingleAnswer(t *testing.T) {
	table, err := FlattenResponses(context.Background(), [][]byte{[]byte(singleAnswerResponses)}, ResponseOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	row := table.Row(0)
	require.Equal(t, "1001", row["respondent_id"])
	require.Equal(t, "Q1", row["question_id"])
	require.Equal(t, "C1", row["choice_id"])
	require.False(t, table.HasColumn("id"))
}

func TestFlattenResponsesAcrossPages(t *testing.T) {
	page1 := `{
		"data": [
			{
				"id": 1001,
				"survey_id": 55,
				"collector_id": 7,
				"total_time": 31,
				"page_path": [],
				"metadata": {"contact": {"email": {"type": "string", "value": "a@example.com"}}},
				"pages": [
					{"id": "P1", "questions": [
						{"id": "Q1", "answers": [{"choice_id": "C1"}, {"choice_id": "C2"}]},
						{"id": "Q2", "answers": [{"text": "free text"}]}
					]},
					{"id": "P2", "questions": []},
					{"id": "P3", "questions": [
						{"id": "Q3", "answers": [{"row_id": "R1", "choice_id": "C9"}]}
					]}
				]
			}
		],
		"links": {"self": "x", "next": "y"}
	}`
	page2 := `{
		"data": [
			{
				"id": "1002",
				"survey_id": "55",
				"page_path": [],
				"pages": [{"questions": [{"id": "Q1", "answers": [{"choice_id": "C2"}]}]}]
			}
		],
		"links": {"self": "y"}
	}`

	f := NewResponseFlattener(ResponseOptions{})
	require.NoError(t, f.AddPage(context.Background(), []byte(page1)))
	require.NoError(t, f.AddPage(context.Background(), []byte(page2)))
	table, err := f.Table(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, table.Len())

	require.Equal(t,
		[]Value{"1001", "1001", "1001", "1001", "1002"},
		table.Column("respondent_id"),
	)
	require.Equal(t,
		[]Value{"Q1", "Q1", "Q2", "Q3", "Q1"},
		table.Column("question_id"),
	)
	require.Equal(t,
		[]Value{"C1", "C2", nil, "C9", "C2"},
		table.Column("choice_id"),
	)
	require.Equal(t,
		[]Value{nil, nil, nil, "R1", nil},
		table.Column("row_id"),
	)
	require.Equal(t,
		[]Value{"55", "55", "55", "55", "55"},
		table.Column("survey_id"),
	)
	require.Equal(t, "a@example.com", table.Row(0)["metadata_contact_email_value"])
	require.Equal(t, "7", table.Row(3)["collector_id"])
	require.False(t, table.HasColumn("page_path"))
	require.False(t, table.HasColumn("pages"))

	// answer columns come first, respondent metadata is appended after them
	columns := table.Columns()
	require.Equal(t, []string{"choice_id", "question_id", "text", "row_id", "respondent_id"}, columns[:5])
}

func TestFlattenResponsesEmptyCollections(t *testing.T) {
	noAnswers := `{
		"data": [
			{"id": "1", "pages": [{"questions": []}]},
			{"id": "2", "pages": [{"questions": [{"id": "Q1", "answers": [{"choice_id": "C1"}]}]}]}
		],
		"links": {}
	}`
	noRespondents := `{"data": [], "links": {}}`

	_, err := FlattenResponses(context.Background(), [][]byte{[]byte(noAnswers)}, ResponseOptions{})
	var empty *EmptyCollectionError
	require.ErrorAs(t, err, &empty)
	require.Equal(t, "pages", empty.Collection)
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, "page[0].data[0]", malformed.Path)

	_, err = FlattenResponses(context.Background(), [][]byte{[]byte(noRespondents)}, ResponseOptions{})
	require.ErrorAs(t, err, &empty)
	require.Equal(t, "data", empty.Collection)

	_, err = FlattenResponses(context.Background(), nil, ResponseOptions{})
	require.ErrorAs(t, err, &empty)

	table, err := FlattenResponses(
		context.Background(),
		[][]byte{[]byte(noAnswers), []byte(noRespondents)},
		ResponseOptions{SkipEmpty: true},
	)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	require.Equal(t, "2", table.Row(0)["respondent_id"])
}

func TestFlattenResponsesMissingFields(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		field   string
	}{
		{name: "links", payload: `{"data": []}`, field: "links"},
		{name: "data", payload: `{"links": {}}`, field: "data"},
		{name: "respondent pages", payload: `{"data": [{"id": "1"}], "links": {}}`, field: "pages"},
		{name: "questions", payload: `{"data": [{"id": "1", "pages": [{}]}], "links": {}}`, field: "questions"},
		{
			name:    "answers",
			payload: `{"data": [{"id": "1", "pages": [{"questions": [{"id": "Q1"}]}]}], "links": {}}`,
			field:   "answers",
		},
		{
			name:    "question id",
			payload: `{"data": [{"id": "1", "pages": [{"questions": [{"answers": []}]}]}], "links": {}}`,
			field:   "id",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			_, err := FlattenResponses(context.Background(), [][]byte{[]byte(test.payload)}, ResponseOptions{})
			var missing *MissingFieldError
			require.ErrorAs(t, err, &missing)
			require.Equal(t, test.field, missing.Field)
			var malformed *MalformedResponseError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestFlattenResponsesConflictingId(t *testing.T) {
	payload := `{"data": [{"id": "1", "pages": [{"questions": [
		{"id": "Q1", "answers": [{"id": "A1", "choice_id": "C1"}]}
	]}]}], "links": {}}`
	_, err := FlattenResponses(context.Background(), [][]byte{[]byte(payload)}, ResponseOptions{})
	require.ErrorIs(t, err, errConflictingId)
}

func TestFlattenResponsesRespondentIdCollision(t *testing.T) {
	payload := `{"data": [{"id": "1001", "respondent_id": "R-9", "pages": [{"questions": [
		{"id": "Q1", "answers": [{"choice_id": "C1"}]}
	]}]}], "links": {}}`
	_, err := FlattenResponses(context.Background(), [][]byte{[]byte(payload)}, ResponseOptions{})
	var collision *ColumnCollisionError
	require.ErrorAs(t, err, &collision)
	require.Equal(t, "respondent_id", collision.Column)
	require.ElementsMatch(t, []string{"id", "respondent_id"}, collision.Sources)
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}
