package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogExporterWritesSpans(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(zap.New(core))))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, parent := tp.Tracer("test").Start(context.Background(), "OrderService.ConfirmAndGenerate",
		trace.WithAttributes(attribute.String("order.id", "order-1")))
	_, child := tp.Tracer("test").Start(ctx, "lookup")
	child.End()
	parent.SetStatus(codes.Error, "timeout")
	parent.End()

	entries := logs.FilterMessage("span").All()
	require.Len(t, entries, 2)

	childFields := entries[0].ContextMap()
	assert.Equal(t, "lookup", childFields["span"])
	assert.Equal(t, parent.SpanContext().SpanID().String(), childFields["parent_span_id"])

	parentFields := entries[1].ContextMap()
	assert.Equal(t, "OrderService.ConfirmAndGenerate", parentFields["span"])
	assert.Equal(t, "order-1", parentFields["order.id"])
	assert.Equal(t, "Error", parentFields["status"])
	assert.Equal(t, "timeout", parentFields["status_description"])
	assert.Equal(t, parent.SpanContext().TraceID().String(), parentFields["trace_id"])
}

func TestNewProviderRegistersGlobally(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	tp := NewProvider("fortune-letter", 1, zap.NewNop())
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "request")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
}
