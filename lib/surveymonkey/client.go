package surveymonkey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"surveyflat/lib/restyutil"
	"surveyflat/lib/telemetry"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/surveymonkey")

const (
	DefaultBaseUrl  = "https://api.surveymonkey.net/v3/"
	DefaultTimeout  = time.Second * 30
	DefaultPerPage  = 100
	DefaultMaxPages = 1000
)

var ErrPaginationLimit = errors.New("pagination limit reached before the last page")

// APIError is returned for any non-2xx response.
type APIError struct {
	Method string
	Url    string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Url, e.Status, strings.TrimSpace(body))
}

type ClientOptions struct {
	BaseUrl     string
	AccessToken string
	// per request, 0 means DefaultTimeout
	Timeout time.Duration
	// responses per page of bulk results, 0 means DefaultPerPage
	PerPage int
	// upper bound on followed pagination links, 0 means DefaultMaxPages
	MaxPages int
	// every request/response pair is written here if set
	InstrumentOutput restyutil.InstrumentOutput
}

type Client struct {
	http     *resty.Client
	perPage  int
	maxPages int
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("an access token is required")
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)
	client.SetAuthToken(opts.AccessToken)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")

	telemetry.InstrumentResty(client, "lib/surveymonkey/http")
	restyutil.InstrumentClient(client, opts.InstrumentOutput)

	return &Client{
		http:     client,
		perPage:  opts.PerPage,
		maxPages: opts.MaxPages,
	}, nil
}

func (c *Client) get(ctx context.Context, req *resty.Request, url string) ([]byte, error) {
	res, err := req.SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, &APIError{
			Method: res.Request.Method,
			Url:    res.Request.URL,
			Status: res.StatusCode(),
			Body:   res.String(),
		}
	}
	return res.Body(), nil
}

// GetSurveyDetails fetches the page/question tree of a survey.
func (c *Client) GetSurveyDetails(ctx context.Context, surveyId string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:GetSurveyDetails")
	defer span.End()
	span.SetAttributes(attribute.String("survey_id", surveyId))

	body, err := c.get(
		ctx,
		c.http.R().SetPathParam("survey_id", surveyId),
		"surveys/{survey_id}/details",
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch survey details")
		return nil, err
	}
	return body, nil
}

// GetResponsePages fetches every page of bulk responses in order and hands
// each one to visit before the next one is requested. It follows links.next
// until a page has none, and fails with ErrPaginationLimit after MaxPages.
func (c *Client) GetResponsePages(ctx context.Context, surveyId string, visit func(ctx context.Context, page []byte) error) error {
	ctx, span := tracer.Start(ctx, "client:GetResponsePages")
	defer span.End()
	span.SetAttributes(attribute.String("survey_id", surveyId))

	body, err := c.get(
		ctx,
		c.http.R().
			SetPathParam("survey_id", surveyId).
			SetQueryParam("per_page", strconv.Itoa(c.perPage)),
		"surveys/{survey_id}/responses/bulk",
	)
	fetched := 1
	for {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch responses")
			return err
		}
		err = visit(ctx, body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to process response page")
			return err
		}

		next := gjson.GetBytes(body, "links.next")
		if next.Type != gjson.String || next.Str == "" {
			span.SetAttributes(attribute.Int("pages", fetched))
			return nil
		}
		if fetched >= c.maxPages {
			err = fmt.Errorf("%w (%d pages)", ErrPaginationLimit, fetched)
			span.RecordError(err)
			span.SetStatus(codes.Error, "too many pages")
			return err
		}

		body, err = c.get(ctx, c.http.R(), next.Str)
		fetched++
	}
}
