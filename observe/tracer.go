package observe

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ProviderMeta identifies an email provider for telemetry purposes.
type ProviderMeta struct {
	Name     string // Provider name as configured (required)
	Kind     string // Backend kind, e.g. simulated or smtp (optional)
	Position int    // Zero-based position in the failover order
}

// SpanName returns the deterministic span name for a send through this provider.
// Format: email.send.<lowercased name>
func (m ProviderMeta) SpanName() string {
	return "email.send." + strings.ToLower(m.Name)
}

// Tracer wraps OpenTelemetry tracing with provider-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one provider send attempt.
	StartSpan(ctx context.Context, meta ProviderMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new client span with provider metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta ProviderMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", meta.Name),
		attribute.Int("provider.position", meta.Position),
		attribute.Bool("email.error", false), // Will be updated in EndSpan if error
	}
	if meta.Kind != "" {
		attrs = append(attrs, attribute.String("provider.kind", meta.Kind))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("email.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ProviderMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
