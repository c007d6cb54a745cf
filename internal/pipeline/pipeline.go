package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"surveyflat/lib/flatten"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/pipeline")

// Source is where survey payloads come from, *surveymonkey.Client in
// production.
type Source interface {
	GetSurveyDetails(ctx context.Context, surveyId string) ([]byte, error)
	GetResponsePages(ctx context.Context, surveyId string, visit func(ctx context.Context, page []byte) error) error
}

type Options struct {
	SkipEmpty     bool
	MinMatchRatio float64
	Identifiers   flatten.IdentifierPolicy
}

func (o Options) detail() flatten.DetailOptions {
	return flatten.DetailOptions{Identifiers: o.Identifiers}
}

func (o Options) response() flatten.ResponseOptions {
	return flatten.ResponseOptions{SkipEmpty: o.SkipEmpty, Identifiers: o.Identifiers}
}

type Result struct {
	Details   *flatten.Table
	Responses *flatten.Table
	Merged    *flatten.Table
	// set when the join matched suspiciously few rows
	Mismatch *flatten.JoinKeyMismatchError
}

func Details(ctx context.Context, src Source, surveyId string, opts Options) (*flatten.Table, error) {
	ctx, span := tracer.Start(ctx, "Details")
	defer span.End()
	span.SetAttributes(attribute.String("survey_id", surveyId))

	start := time.Now()
	payload, err := src.GetSurveyDetails(ctx, surveyId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch details")
		return nil, fmt.Errorf("fetch details of survey %s: %w", surveyId, err)
	}
	table, err := flatten.FlattenDetails(ctx, surveyId, payload, opts.detail())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to flatten details")
		return nil, fmt.Errorf("flatten details of survey %s: %w", surveyId, err)
	}

	slog.InfoContext(
		ctx, "survey details",
		"survey_id", surveyId,
		"rows", table.Len(),
		"seconds", time.Since(start).Seconds(),
	)
	return table, nil
}

func Responses(ctx context.Context, src Source, surveyId string, opts Options) (*flatten.Table, error) {
	ctx, span := tracer.Start(ctx, "Responses")
	defer span.End()
	span.SetAttributes(attribute.String("survey_id", surveyId))

	start := time.Now()
	flattener := flatten.NewResponseFlattener(opts.response())
	pages := 0
	err := src.GetResponsePages(ctx, surveyId, func(ctx context.Context, page []byte) error {
		pages++
		slog.DebugContext(ctx, "received response page", "survey_id", surveyId, "page", pages, "bytes", len(page))
		return flattener.AddPage(ctx, page)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to collect responses")
		return nil, fmt.Errorf("responses of survey %s: %w", surveyId, err)
	}

	table, err := flattener.Table(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to flatten responses")
		return nil, fmt.Errorf("responses of survey %s: %w", surveyId, err)
	}

	slog.InfoContext(
		ctx, "survey responses",
		"survey_id", surveyId,
		"pages", pages,
		"rows", table.Len(),
		"seconds", time.Since(start).Seconds(),
	)
	return table, nil
}

func join(ctx context.Context, details, responses *flatten.Table, opts Options) (Result, error) {
	joined, err := flatten.Join(
		ctx, details, responses,
		flatten.AnalysisKeys,
		flatten.JoinOptions{MinMatchRatio: opts.MinMatchRatio},
	)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Details:   details,
		Responses: responses,
		Merged:    joined.Table,
		Mismatch:  joined.Mismatch,
	}, nil
}

// Merge fetches and flattens details and responses of a survey, then joins
// them for analysis.
func Merge(ctx context.Context, src Source, surveyId string, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Merge")
	defer span.End()

	details, err := Details(ctx, src, surveyId, opts)
	if err != nil {
		return Result{}, err
	}
	responses, err := Responses(ctx, src, surveyId, opts)
	if err != nil {
		return Result{}, err
	}
	result, err := join(ctx, details, responses, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to join")
		return Result{}, err
	}
	return result, nil
}

// Offline runs the same steps as Merge over payloads saved earlier. If
// surveyId is empty, the id field of the details payload is used.
func Offline(ctx context.Context, surveyId string, details []byte, responses [][]byte, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Offline")
	defer span.End()

	if surveyId == "" {
		id := gjson.GetBytes(details, "id")
		if !id.Exists() || id.String() == "" {
			return Result{}, fmt.Errorf("no survey id given and the details payload has no id")
		}
		surveyId = id.String()
	}

	detailTable, err := flatten.FlattenDetails(ctx, surveyId, details, opts.detail())
	if err != nil {
		return Result{}, fmt.Errorf("flatten details: %w", err)
	}
	responseTable, err := flatten.FlattenResponses(ctx, responses, opts.response())
	if err != nil {
		return Result{}, fmt.Errorf("flatten responses: %w", err)
	}
	return join(ctx, detailTable, responseTable, opts)
}

// ReadPayloads reads each file as one raw payload.
func ReadPayloads(paths ...string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		contents, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, contents)
	}
	return out, nil
}
