package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/maildispatch/email"
)

// SendFunc is the signature for one provider send attempt.
// This is the function signature that Middleware wraps.
type SendFunc func(ctx context.Context, provider ProviderMeta, msg email.Message) (email.Result, error)

// Middleware wraps provider sends with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe SendFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: the message body is never logged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a SendFunc with tracing, metrics, and logging.
// Failed sends are logged at warn: a single provider failure is recoverable
// by failover.
func (m *Middleware) Wrap(fn SendFunc) SendFunc {
	return func(ctx context.Context, provider ProviderMeta, msg email.Message) (email.Result, error) {
		ctx, span := m.tracer.StartSpan(ctx, provider)
		start := time.Now()

		result, err := fn(ctx, provider, msg)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordAttempt(ctx, provider, duration, err)

		providerLogger := m.logger.WithProvider(provider)
		fields := []Field{
			{Key: "to", Value: msg.To},
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			providerLogger.Warn(ctx, "email send failed", fields...)
		} else {
			fields = append(fields, Field{Key: "message_id", Value: result.ID})
			providerLogger.Debug(ctx, "email send completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware and its Metrics from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, Metrics, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), metrics, nil
}
