package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "surveyflat-test", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.tracerProvider)
	require.Nil(t, tel.meterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))

	require.NoError(t, Telemetry{}.Shutdown(context.Background()))
}

func TestSetupHttpEndpoints(t *testing.T) {
	var mu sync.Mutex
	received := map[string]string{}
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received[r.URL.Path] = r.Header.Get("X-Collector-Key")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	headers := map[string]string{"X-Collector-Key": "k"}
	tel, err := Setup(context.Background(), "surveyflat-test", Config{Otlp: OtlpConfig{
		Traces:  OtlpEndpoint{HttpEndpoint: collector.URL + "/v1/traces", Headers: headers},
		Metrics: OtlpEndpoint{HttpEndpoint: collector.URL + "/v1/metrics", Headers: headers},
	}})
	require.NoError(t, err)
	require.NotNil(t, tel.tracerProvider)
	require.NotNil(t, tel.meterProvider)
	require.Equal(t, tel.tracerProvider, otel.GetTracerProvider())
	require.Equal(t, tel.meterProvider, otel.GetMeterProvider())

	_, span := otel.Tracer("surveyflat-test").Start(context.Background(), "export")
	span.End()
	counter, err := otel.Meter("surveyflat-test").Int64Counter("surveyflat.test")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	// shutdown flushes both signals to the collector
	require.NoError(t, tel.Shutdown(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, map[string]string{"/v1/traces": "k", "/v1/metrics": "k"}, received)
}

func TestEndpointProtocol(t *testing.T) {
	require.Equal(t, protocolNone, OtlpEndpoint{}.protocol())
	require.Equal(t, protocolHttp, OtlpEndpoint{HttpEndpoint: "http://localhost:4318"}.protocol())

	both := OtlpEndpoint{GrpcEndpoint: "http://localhost:4317", HttpEndpoint: "http://localhost:4318"}
	require.Equal(t, protocolGrpc, both.protocol())
	require.Equal(t, "http://localhost:4317", both.url())

	_, err := newSpanExporter(context.Background(), OtlpEndpoint{})
	require.Error(t, err)
	_, err = newMetricExporter(context.Background(), OtlpEndpoint{})
	require.Error(t, err)
}

func TestHeaderRedaction(t *testing.T) {
	require.Equal(t, "<redacted>", headerValue("authorization", "Bearer secret"))
	require.Equal(t, "<redacted>", headerValue("Set-Cookie", "session=1"))
	require.Equal(t, "application/json", headerValue("Content-Type", "application/json"))

	var attrs []attribute.KeyValue
	instrumentHeaders(&attrs, "request", http.Header{
		"Authorization": {"Bearer secret"},
		"Accept":        {"a", "b"},
	})
	require.Len(t, attrs, 3)
	for _, a := range attrs {
		require.NotContains(t, a.Value.AsString(), "secret")
	}
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short"))

	long := strings.Repeat("x", maxBodyAttribute+10)
	out := truncate(long)
	require.True(t, strings.HasPrefix(out, strings.Repeat("x", maxBodyAttribute)))
	require.True(t, strings.HasSuffix(out, "(10 bytes truncated)"))
}
