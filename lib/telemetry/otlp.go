package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	exportTimeout  = 3 * time.Second
	metricInterval = 5 * time.Second
)

// OtlpEndpoint is where one signal is shipped. When both endpoints are set
// grpc wins.
type OtlpEndpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

type OtlpConfig struct {
	Traces  OtlpEndpoint `json:"traces"`
	Metrics OtlpEndpoint `json:"metrics"`
}

// Config is the shape of telemetry.json5.
type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

type protocol string

const (
	protocolNone protocol = ""
	protocolGrpc protocol = "grpc"
	protocolHttp protocol = "http"
)

func (e OtlpEndpoint) protocol() protocol {
	switch {
	case e.GrpcEndpoint != "":
		return protocolGrpc
	case e.HttpEndpoint != "":
		return protocolHttp
	}
	return protocolNone
}

func (e OtlpEndpoint) url() string {
	if e.protocol() == protocolGrpc {
		return e.GrpcEndpoint
	}
	return e.HttpEndpoint
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newSpanExporter(ctx context.Context, e OtlpEndpoint) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	slog.Info("trace export configured", "protocol", e.protocol(), "endpoint", e.url(), "headers", len(e.Headers) > 0)
	switch e.protocol() {
	case protocolGrpc:
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(e.GrpcEndpoint),
			otlptracegrpc.WithHeaders(e.Headers),
		)
	case protocolHttp:
		return otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(e.HttpEndpoint),
			otlptracehttp.WithHeaders(e.Headers),
		)
	}
	return nil, fmt.Errorf("no trace endpoint configured")
}

func newMetricExporter(ctx context.Context, e OtlpEndpoint) (metric.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	slog.Info("metric export configured", "protocol", e.protocol(), "endpoint", e.url(), "headers", len(e.Headers) > 0)
	switch e.protocol() {
	case protocolGrpc:
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(e.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(e.Headers),
		)
	case protocolHttp:
		return otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpointURL(e.HttpEndpoint),
			otlpmetrichttp.WithHeaders(e.Headers),
		)
	}
	return nil, fmt.Errorf("no metric endpoint configured")
}

func newTracerProvider(ctx context.Context, r *resource.Resource, e OtlpEndpoint) (*trace.TracerProvider, error) {
	exporter, err := newSpanExporter(ctx, e)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
	), nil
}

func newMeterProvider(ctx context.Context, r *resource.Resource, e OtlpEndpoint) (*metric.MeterProvider, error) {
	exporter, err := newMetricExporter(ctx, e)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(metricInterval))),
		metric.WithResource(r),
	), nil
}
