// Package telemetry wires OpenTelemetry tracing into the discussion
// pipeline: one span per discussion round (round number attribute) and
// one per adapter turn (adapter name attribute); no outcome attribute is
// recorded (SPEC_FULL.md §A.5), grounded on itsneelabh-gomind's
// telemetry/otel.go and telemetry/async_span.go.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nyxforge/concord"

var (
	mu     sync.RWMutex
	tracer trace.Tracer = otel.Tracer(tracerName)
)

// Init installs a process-wide TracerProvider tagged with serviceName
// and returns its Shutdown func. Unlike the gomind provider this wires
// no OTLP exporter — this module's go.mod carries `otel`, `otel/sdk`,
// and `otel/trace` only, no exporter package, so spans are recorded by
// the SDK but not shipped anywhere until a caller adds an exporter of
// its own (SPEC_FULL.md §B lists no OTLP exporter dependency).
func Init(serviceName string) func(context.Context) error {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	mu.Lock()
	tracer = tp.Tracer(tracerName)
	mu.Unlock()

	return tp.Shutdown
}

// Tracer returns the package's current tracer.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

// StartSpan starts a span named name under ctx with attrs already
// attached, returning the child context and an End func for defer
// (gomind's StartLinkedSpan ctx/end-func shape, without the cross-async
// linking this module has no use for).
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// RecordError attaches err to the span active in ctx, if any.
func RecordError(ctx context.Context, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
}
