// Package tracer provides the tracing abstraction used around plan extraction.
// It supports OpenTelemetry and allows custom tracer implementations.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around plan extractions.
type Tracer interface {
	// StartSpan starts a new tracing span with the given name
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span that captures the execution of an operation.
type Span interface {
	// SetAttributes sets key-value attributes on the span
	SetAttributes(attrs ...attribute.KeyValue)
	// RecordError records an error that occurred during the span
	RecordError(err error)
	// SetStatus sets the status code and description of the span
	SetStatus(code codes.Code, description string)
	// End marks the span as complete
	End()
}

// NoopTracer is the default tracer. It records nothing.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan is a span that does nothing.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer adapts an OpenTelemetry tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a new OpenTelemetry tracer adapter.
// The provided tracer must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a new OpenTelemetry span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets OpenTelemetry attributes on the span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records an error on the OpenTelemetry span.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the OpenTelemetry span.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End completes the OpenTelemetry span.
func (s *OtelSpan) End() {
	s.span.End()
}

// SpanExtract is the span name used for one plan extraction.
const SpanExtract = "queryplan.extract"

// ExtractionMetadata describes one plan extraction for a span.
// Attribute names follow the OpenTelemetry database conventions.
type ExtractionMetadata struct {
	// Provider is the provider identifier the caller resolved (sqlite, oracle, ...).
	Provider string
	// Database is the db.system value, e.g. "postgresql" or "mssql".
	Database string
	// Statement is the user query before any EXPLAIN rewrite.
	Statement string
	// Duration covers the whole extraction including session toggles.
	Duration time.Duration
	// PlanSize is the length of the raw plan in bytes.
	PlanSize int
	// Error is the extraction failure, if any.
	Error error
}

// AddExtractionAttributes sets attributes and status on span.
// See: https://opentelemetry.io/docs/specs/semconv/database/
func AddExtractionAttributes(span Span, meta *ExtractionMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.Statement),
		attribute.String("db.operation", DetectOperation(meta.Statement)),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
		attribute.String("queryplan.provider", meta.Provider),
	}

	if meta.PlanSize > 0 {
		attrs = append(attrs, attribute.Int("queryplan.plan_bytes", meta.PlanSize))
	}

	span.SetAttributes(attrs...)

	if meta.Error != nil {
		span.RecordError(meta.Error)
		span.SetStatus(codes.Error, meta.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// DetectOperation returns the leading SQL verb of a statement:
// SELECT, INSERT, UPDATE, DELETE, MERGE, or UNKNOWN.
// Leading line comments are skipped.
func DetectOperation(sql string) string {
	sql = strings.ToUpper(stripLineComments(sql))
	switch {
	case strings.HasPrefix(sql, "SELECT"), strings.HasPrefix(sql, "WITH"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	case strings.HasPrefix(sql, "MERGE"):
		return "MERGE"
	}
	return "UNKNOWN"
}

func stripLineComments(sql string) string {
	sql = strings.TrimSpace(sql)
	for strings.HasPrefix(sql, "--") {
		i := strings.IndexByte(sql, '\n')
		if i < 0 {
			return ""
		}
		sql = strings.TrimSpace(sql[i+1:])
	}
	return sql
}
