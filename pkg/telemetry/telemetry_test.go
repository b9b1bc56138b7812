package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpanReturnsUsableContextAndEnd(t *testing.T) {
	shutdown := Init("concord-test")
	defer shutdown(context.Background())

	ctx, end := StartSpan(context.Background(), "test.span", attribute.String("k", "v"))
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	end()
}

func TestRecordErrorDoesNotPanicWithoutAnActiveSpan(t *testing.T) {
	RecordError(context.Background(), errors.New("boom"))
}

func TestTracerIsNeverNil(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("expected a non-nil tracer before Init is called")
	}
}
