package surveymonkey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeApi struct {
	t        testing.TB
	server   *httptest.Server
	pages    int
	loop     bool
	requests []*http.Request
}

func newFakeApi(t testing.TB, pages int) *fakeApi {
	api := &fakeApi{t: t, pages: pages}
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/surveys/120134627/details", func(w http.ResponseWriter, r *http.Request) {
		api.requests = append(api.requests, r)
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{"title": "Lunch survey", "pages": []}`)
	})
	mux.HandleFunc("/v3/surveys/120134627/responses/bulk", func(w http.ResponseWriter, r *http.Request) {
		api.requests = append(api.requests, r)
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)

		links := fmt.Sprintf(`{"self": "%s%s"}`, api.server.URL, r.URL.String())
		if api.loop || page < api.pages {
			links = fmt.Sprintf(
				`{"self": "x", "next": "%s/v3/surveys/120134627/responses/bulk?page=%d&per_page=%s"}`,
				api.server.URL, page+1, r.URL.Query().Get("per_page"),
			)
		}
		w.Header().Set("content-type", "application/json")
		fmt.Fprintf(w, `{"page": %d, "data": [], "links": %s}`, page, links)
	})
	mux.HandleFunc("/v3/surveys/missing/details", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"id": "1020", "message": "Resource not found"}}`)
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (api *fakeApi) client(t testing.TB, opts ClientOptions) *Client {
	opts.BaseUrl = api.server.URL + "/v3/"
	opts.AccessToken = "token-123"
	client, err := NewClient(opts)
	require.NoError(t, err)
	return client
}

func TestGetSurveyDetails(t *testing.T) {
	api := newFakeApi(t, 1)
	client := api.client(t, ClientOptions{})

	body, err := client.GetSurveyDetails(context.Background(), "120134627")
	require.NoError(t, err)
	require.JSONEq(t, `{"title": "Lunch survey", "pages": []}`, string(body))

	require.Len(t, api.requests, 1)
	require.Equal(t, "Bearer token-123", api.requests[0].Header.Get("Authorization"))
	require.Equal(t, "application/json", api.requests[0].Header.Get("Content-Type"))
}

func TestGetSurveyDetailsError(t *testing.T) {
	api := newFakeApi(t, 1)
	client := api.client(t, ClientOptions{})

	_, err := client.GetSurveyDetails(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Contains(t, apiErr.Error(), "Resource not found")
}

func TestGetResponsePages(t *testing.T) {
	api := newFakeApi(t, 3)
	client := api.client(t, ClientOptions{PerPage: 25})

	var pages []string
	err := client.GetResponsePages(context.Background(), "120134627", func(ctx context.Context, page []byte) error {
		pages = append(pages, string(page))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Contains(t, pages[0], `"page": 1`)
	require.Contains(t, pages[2], `"page": 3`)

	require.Len(t, api.requests, 3)
	for _, r := range api.requests {
		require.Equal(t, "25", r.URL.Query().Get("per_page"))
		require.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
	}
}

func TestGetResponsePagesLimit(t *testing.T) {
	api := newFakeApi(t, 0)
	api.loop = true
	client := api.client(t, ClientOptions{MaxPages: 4})

	visited := 0
	err := client.GetResponsePages(context.Background(), "120134627", func(ctx context.Context, page []byte) error {
		visited++
		return nil
	})
	require.ErrorIs(t, err, ErrPaginationLimit)
	require.Equal(t, 4, visited)
	require.Len(t, api.requests, 4)
}

func TestGetResponsePagesVisitError(t *testing.T) {
	api := newFakeApi(t, 5)
	client := api.client(t, ClientOptions{})

	stop := errors.New("stop")
	err := client.GetResponsePages(context.Background(), "120134627", func(ctx context.Context, page []byte) error {
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Len(t, api.requests, 1)
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second * 2):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{
		BaseUrl:     server.URL,
		AccessToken: "x",
		Timeout:     time.Millisecond * 50,
	})
	require.NoError(t, err)

	_, err = client.GetSurveyDetails(context.Background(), "1")
	require.Error(t, err)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.Error(t, err)
}
