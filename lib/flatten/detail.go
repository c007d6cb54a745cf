package flatten

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type DetailOptions struct {
	Identifiers IdentifierPolicy
}

// FlattenDetails turns a survey details payload into one row per question,
// or per question and answer option for questions that have answer groups.
func FlattenDetails(ctx context.Context, surveyId string, payload []byte, opts DetailOptions) (*Table, error) {
	ctx, span := tracer.Start(ctx, "FlattenDetails")
	defer span.End()
	span.SetAttributes(attribute.String("survey_id", surveyId))

	out, err := flattenDetails(surveyId, payload, opts.Identifiers.orDefault())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to flatten survey details")
		return nil, err
	}

	rowCounter.Add(ctx, int64(out.Len()), tableAttr("details"))
	slog.DebugContext(ctx, "flattened survey details", "survey_id", surveyId, "rows", out.Len(), "columns", len(out.columns))
	return out, nil
}

func flattenDetails(surveyId string, payload []byte, ids IdentifierPolicy) (*Table, error) {
	root, err := parsePayload("$", payload)
	if err != nil {
		return nil, err
	}
	pages, err := arrayField(root, "$", "pages")
	if err != nil {
		return nil, err
	}
	title, err := field(root, "$", "title")
	if err != nil {
		return nil, err
	}

	questions := NewTable()
	for i, page := range pages {
		path := fmt.Sprintf("pages[%d]", i)
		rows, err := flattenDetailPage(path, page)
		if err != nil {
			return nil, err
		}
		questions.Concat(rows)
	}

	return rebuild(
		questions,
		func(c string) string { return strings.ReplaceAll(c, "choices", "choice") },
		Record{
			{Name: "title", Value: cellValue(title)},
			{Name: "survey_id", Value: surveyId},
		},
		ids,
	)
}

func flattenDetailPage(path string, page gjson.Result) (*Table, error) {
	count, err := field(page, path, "question_count")
	if err != nil {
		return nil, err
	}
	out := NewTable()
	if count.Int() == 0 {
		return out, nil
	}

	questions, err := arrayField(page, path, "questions")
	if err != nil {
		return nil, err
	}
	for i, q := range questions {
		rows, err := flattenQuestion(fmt.Sprintf("%s.questions[%d]", path, i), q)
		if err != nil {
			return nil, err
		}
		out.Concat(rows)
	}
	return out, nil
}

func flattenQuestion(path string, q gjson.Result) (*Table, error) {
	if !q.IsObject() {
		return nil, malformed(path, errNotObject)
	}

	var rec Record
	for _, f := range normalize(q) {
		if strings.Contains(f.Name, "answers") || strings.Contains(f.Name, "heading") {
			continue
		}
		rec = append(rec, Field{Name: "question_" + f.Name, Value: f.Value})
	}

	headings, err := pivotHeadings(path, q.Get("headings"))
	if err != nil {
		return nil, err
	}
	rows := single(append(rec, headings...))

	answers := q.Get("answers")
	if !answers.Exists() {
		return rows, nil
	}
	if !answers.IsObject() {
		return nil, malformed(path+".answers", errNotObject)
	}

	var groupErr error
	answers.ForEach(func(key, group gjson.Result) bool {
		options, err := flattenAnswerGroup(path+".answers."+key.String(), key.String(), group)
		if err != nil {
			groupErr = err
			return false
		}
		if options.Len() == 0 {
			slog.Debug("question has an empty answer group, no rows", "path", path, "group", key.String())
			rows = NewTable()
			return false
		}
		rows = Broadcast(rows, options)
		return true
	})
	if groupErr != nil {
		return nil, groupErr
	}
	return rows, nil
}

// pivotHeadings lays a question's headings out side by side on one record.
// The first heading's fields are named heading_<field>, later ones
// heading_<n>_<field>.
func pivotHeadings(path string, headings gjson.Result) (Record, error) {
	if !headings.Exists() || headings.Type == gjson.Null {
		return nil, nil
	}
	if !headings.IsArray() {
		return nil, malformed(path+".headings", errNotArray)
	}

	var out Record
	for i, h := range headings.Array() {
		if !h.IsObject() {
			return nil, malformed(fmt.Sprintf("%s.headings[%d]", path, i), errNotObject)
		}
		prefix := "heading_"
		if i > 0 {
			prefix = fmt.Sprintf("heading_%d_", i)
		}
		out = append(out, prefixed(normalize(h), prefix)...)
	}
	return out, nil
}

// an answer group is either a list of option records or a single record
// (the "other" option is sent as an object)
func flattenAnswerGroup(path, key string, group gjson.Result) (*Table, error) {
	out := NewTable()
	switch {
	case group.IsObject():
		out.Append(prefixed(normalize(group), key+sep))
	case group.IsArray():
		for i, option := range group.Array() {
			if !option.IsObject() {
				return nil, malformed(fmt.Sprintf("%s[%d]", path, i), errNotObject)
			}
			out.Append(prefixed(normalize(option), key+sep))
		}
	default:
		return nil, malformed(path, errNotArray)
	}
	return out, nil
}
