package flatten

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errConflictingId = errors.New("answer record already has an \"id\" field")

type ResponseOptions struct {
	// skip respondents and result pages that have nothing to stack instead
	// of failing with an EmptyCollectionError
	SkipEmpty   bool
	Identifiers IdentifierPolicy
}

// ResponseFlattener accumulates pages of bulk response results. Add pages in
// the order they were fetched, then call Table.
type ResponseFlattener struct {
	opts     ResponseOptions
	combined *Table
	pages    int
}

func NewResponseFlattener(opts ResponseOptions) *ResponseFlattener {
	opts.Identifiers = opts.Identifiers.orDefault()
	return &ResponseFlattener{opts: opts, combined: NewTable()}
}

// AddPage flattens a single page of bulk results.
func (f *ResponseFlattener) AddPage(ctx context.Context, payload []byte) error {
	ctx, span := tracer.Start(ctx, "ResponseFlattener:AddPage")
	defer span.End()
	span.SetAttributes(attribute.Int("page", f.pages))

	path := fmt.Sprintf("page[%d]", f.pages)
	rows, err := f.flattenPage(ctx, path, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to flatten response page")
		return err
	}
	f.combined.Concat(rows)
	f.pages++
	return nil
}

func (f *ResponseFlattener) flattenPage(ctx context.Context, path string, payload []byte) (*Table, error) {
	root, err := parsePayload(path, payload)
	if err != nil {
		return nil, err
	}
	if _, err := field(root, path, "links"); err != nil {
		return nil, malformed(path, err)
	}
	respondents, err := arrayField(root, path, "data")
	if err != nil {
		return nil, malformed(path, err)
	}
	if len(respondents) == 0 {
		empty := &EmptyCollectionError{Path: path, Collection: "data"}
		if !f.opts.SkipEmpty {
			return nil, malformed(path, empty)
		}
		slog.WarnContext(ctx, "skipping result page without respondents", "path", path)
		return NewTable(), nil
	}

	out := NewTable()
	for i, respondent := range respondents {
		rpath := fmt.Sprintf("%s.data[%d]", path, i)
		rows, err := flattenRespondent(rpath, respondent)
		var empty *EmptyCollectionError
		if errors.As(err, &empty) && f.opts.SkipEmpty {
			slog.WarnContext(ctx, "skipping respondent without answered questions", "path", rpath)
			continue
		}
		if err != nil {
			return nil, malformed(rpath, err)
		}
		out.Concat(rows)
	}
	return out, nil
}

func flattenRespondent(path string, respondent gjson.Result) (*Table, error) {
	if !respondent.IsObject() {
		return nil, errNotObject
	}
	pages, err := arrayField(respondent, path, "pages")
	if err != nil {
		return nil, err
	}

	answers := NewTable()
	stacked := 0
	for i, page := range pages {
		ppath := fmt.Sprintf("%s.pages[%d]", path, i)
		questions, err := arrayField(page, ppath, "questions")
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			continue
		}
		rows, err := explodeAnswers(ppath, questions)
		if err != nil {
			return nil, err
		}
		answers.Concat(rows)
		stacked++
	}
	if stacked == 0 {
		return nil, &EmptyCollectionError{Path: path, Collection: "pages"}
	}

	metadata := single(without(normalize(respondent), "pages"))
	return Broadcast(answers, metadata), nil
}

// explodeAnswers produces one record per answer, tagged with the id of the
// question it answers.
func explodeAnswers(path string, questions []gjson.Result) (*Table, error) {
	out := NewTable()
	for i, q := range questions {
		qpath := fmt.Sprintf("%s.questions[%d]", path, i)
		answers, err := arrayField(q, qpath, "answers")
		if err != nil {
			return nil, err
		}
		id, err := field(q, qpath, "id")
		if err != nil {
			return nil, err
		}
		for j, a := range answers {
			apath := fmt.Sprintf("%s.answers[%d]", qpath, j)
			if !a.IsObject() {
				return nil, malformed(apath, errNotObject)
			}
			rec := normalize(a)
			for _, f := range rec {
				if f.Name == "id" {
					return nil, malformed(apath, errConflictingId)
				}
			}
			out.Append(append(rec, Field{Name: "question_id", Value: cellValue(id)}))
		}
	}
	return out, nil
}

// Table finishes the accumulated pages: the respondent's id becomes
// respondent_id, page_path is dropped and identifiers become strings.
func (f *ResponseFlattener) Table(ctx context.Context) (*Table, error) {
	_, span := tracer.Start(ctx, "ResponseFlattener:Table")
	defer span.End()

	if f.pages == 0 && !f.opts.SkipEmpty {
		return nil, &EmptyCollectionError{Path: "$", Collection: "pages"}
	}

	out, err := rebuild(
		f.combined,
		func(c string) string {
			switch c {
			case "id":
				return "respondent_id"
			case "page_path":
				return ""
			}
			return c
		},
		nil,
		f.opts.Identifiers,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to finish response table")
		return nil, err
	}

	rowCounter.Add(ctx, int64(out.Len()), tableAttr("responses"))
	slog.DebugContext(ctx, "flattened survey responses", "pages", f.pages, "rows", out.Len(), "columns", len(out.columns))
	return out, nil
}

// FlattenResponses flattens already fetched pages of bulk results.
func FlattenResponses(ctx context.Context, pages [][]byte, opts ResponseOptions) (*Table, error) {
	f := NewResponseFlattener(opts)
	for _, p := range pages {
		if err := f.AddPage(ctx, p); err != nil {
			return nil, err
		}
	}
	return f.Table(ctx)
}
