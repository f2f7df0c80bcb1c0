package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for picker operations.
	TracerName = "backoffice/picker"
)

// Span attribute keys
const (
	AttrEntityType  = "entity_type"
	AttrEntityKey   = "entity_key"
	AttrQueryLength = "query_length"
	AttrLimit       = "limit"
	AttrResultCount = "result_count"
	AttrCacheHit    = "cache_hit"
	AttrForm        = "form"
	AttrErrorType   = "error_type"
	AttrRetryable   = "retryable"
)

// Span names
const (
	SpanSearch   = "picker.search"
	SpanResolve  = "picker.resolve_label"
	SpanExists   = "picker.exists"
	SpanValidate = "forms.validate"
)

// Tracer provides distributed tracing for picker operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer backed by the global OpenTelemetry provider.
func NewTracer() *Tracer {
	return NewTracerWithProvider(otel.GetTracerProvider())
}

// NewTracerWithProvider creates a tracer backed by tp.
func NewTracerWithProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// StartSearchSpan starts a span for a picker search. The raw query text is
// not recorded, only its length.
func (t *Tracer) StartSearchSpan(ctx context.Context, entityType string, queryLen, limit int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSearch,
		trace.WithAttributes(
			attribute.String(AttrEntityType, entityType),
			attribute.Int(AttrQueryLength, queryLen),
			attribute.Int(AttrLimit, limit),
		),
	)
}

// StartResolveSpan starts a span for a label resolution.
func (t *Tracer) StartResolveSpan(ctx context.Context, entityType string, key int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanResolve,
		trace.WithAttributes(
			attribute.String(AttrEntityType, entityType),
			attribute.Int64(AttrEntityKey, key),
		),
	)
}

// StartExistsSpan starts a span for a submission-time existence check.
func (t *Tracer) StartExistsSpan(ctx context.Context, entityType string, key int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanExists,
		trace.WithAttributes(
			attribute.String(AttrEntityType, entityType),
			attribute.Int64(AttrEntityKey, key),
		),
	)
}

// StartValidateSpan starts a span for a form validation.
func (t *Tracer) StartValidateSpan(ctx context.Context, form string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanValidate,
		trace.WithAttributes(attribute.String(AttrForm, form)),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetResultCount records how many options a search produced.
func (h *SpanHelper) SetResultCount(n int) {
	h.span.SetAttributes(attribute.Int(AttrResultCount, n))
}

// SetCacheHit records whether a label came from the cache.
func (h *SpanHelper) SetCacheHit(hit bool) {
	h.span.SetAttributes(attribute.Bool(AttrCacheHit, hit))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorType string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorType, errorType),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
