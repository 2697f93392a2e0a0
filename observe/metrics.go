package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records dispatch and delivery metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAttempt records one provider send attempt with duration and error status.
	RecordAttempt(ctx context.Context, meta ProviderMeta, duration time.Duration, err error)

	// RecordSubmission records an admission decision, e.g. enqueued,
	// replayed, rate_limited or queue_full.
	RecordSubmission(ctx context.Context, outcome string)

	// RecordDelivery records the terminal outcome of a queued item.
	// provider is empty when every provider failed.
	RecordDelivery(ctx context.Context, outcome, provider string)

	// RecordCircuitState records the current circuit state of a provider.
	RecordCircuitState(ctx context.Context, provider, state string, value int64)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	attempts     metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	submissions  metric.Int64Counter
	deliveries   metric.Int64Counter
	circuitState metric.Int64Gauge
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	attempts, err := meter.Int64Counter(
		"maildispatch.send.attempts",
		metric.WithDescription("Provider send attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"maildispatch.send.errors",
		metric.WithDescription("Failed provider send attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"maildispatch.send.duration_ms",
		metric.WithDescription("Provider send duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	submissions, err := meter.Int64Counter(
		"maildispatch.submissions",
		metric.WithDescription("Submissions by admission outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter(
		"maildispatch.deliveries",
		metric.WithDescription("Queued items by terminal outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	circuitState, err := meter.Int64Gauge(
		"maildispatch.circuit.state",
		metric.WithDescription("Circuit state per provider: 0 healthy, 1 degraded, 2 open"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		attempts:     attempts,
		errorCount:   errorCount,
		durationHist: durationHist,
		submissions:  submissions,
		deliveries:   deliveries,
		circuitState: circuitState,
	}, nil
}

// RecordAttempt records metrics for one provider send.
func (m *metricsImpl) RecordAttempt(ctx context.Context, meta ProviderMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("provider.name", meta.Name))

	m.attempts.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordSubmission(ctx context.Context, outcome string) {
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metricsImpl) RecordDelivery(ctx context.Context, outcome, provider string) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if provider != "" {
		attrs = append(attrs, attribute.String("provider.name", provider))
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordCircuitState(ctx context.Context, provider, state string, value int64) {
	m.circuitState.Record(ctx, value, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("state", state),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordAttempt(context.Context, ProviderMeta, time.Duration, error) {}
func (noopMetrics) RecordSubmission(context.Context, string)                         {}
func (noopMetrics) RecordDelivery(context.Context, string, string)                   {}
func (noopMetrics) RecordCircuitState(context.Context, string, string, int64)        {}
