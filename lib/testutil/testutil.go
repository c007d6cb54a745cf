package testutil

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	setupOnce sync.Once
	spans     *tracetest.InMemoryExporter
	reader    *sdkmetric.ManualReader
)

// Telemetry gives tests access to everything recorded through the global
// otel providers.
type Telemetry struct {
	Spans  *tracetest.InMemoryExporter
	Reader *sdkmetric.ManualReader
}

// SetupTelemetry installs in-memory trace and metric providers as the otel
// globals. Package level tracers only bind to the first global provider, so
// this happens once per test binary and later calls just clear the recorded
// spans.
func SetupTelemetry(t testing.TB) Telemetry {
	t.Helper()
	setupOnce.Do(func() {
		spans = tracetest.NewInMemoryExporter()
		reader = sdkmetric.NewManualReader()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans)))
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	})
	spans.Reset()
	return Telemetry{Spans: spans, Reader: reader}
}

func (tel Telemetry) SpanNames() []string {
	var names []string
	for _, s := range tel.Spans.GetSpans() {
		names = append(names, s.Name)
	}
	return names
}

// Counter sums the int64 counter called name over every data point carrying
// attr. Counters are cumulative, compare before and after values.
func (tel Telemetry) Counter(t testing.TB, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tel.Reader.Collect(context.Background(), &rm)
	if err != nil {
		t.Fatal(err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, ok := dp.Attributes.Value(attr.Key)
				if ok && v.Emit() == attr.Value.Emit() {
					total += dp.Value
				}
			}
		}
	}
	return total
}
