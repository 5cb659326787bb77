// Package tracing installs the OpenTelemetry SDK so spans started through
// otel.Tracer are sampled and exported instead of dropped.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// NewProvider builds a tracer provider that samples ratio of new traces,
// writes finished spans to log and registers itself globally. Callers must
// Shutdown it to flush the last batch.
func NewProvider(service string, ratio float64, log *zap.Logger) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(NewLogExporter(log)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
	)
	otel.SetTracerProvider(tp)
	return tp
}

// LogExporter writes each finished span as one structured log line.
type LogExporter struct {
	log *zap.Logger
}

func NewLogExporter(log *zap.Logger) *LogExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogExporter{log: log}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		sc := s.SpanContext()
		fields := []zap.Field{
			zap.String("span", s.Name()),
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		if parent := s.Parent(); parent.IsValid() {
			fields = append(fields, zap.String("parent_span_id", parent.SpanID().String()))
		}
		if desc := s.Status().Description; desc != "" {
			fields = append(fields, zap.String("status_description", desc))
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		e.log.Info("span", fields...)
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error { return nil }
