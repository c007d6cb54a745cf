package flatten

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("lib/flatten")
var meter = otel.Meter("lib/flatten")

var rowCounter, _ = meter.Int64Counter(
	"surveyflat.rows",
	metric.WithDescription("rows produced by the flatteners and the joiner"),
)

func tableAttr(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("table", name))
}
