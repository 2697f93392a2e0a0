package dispatch

import (
	"context"

	"github.com/jonwraymond/maildispatch/observe"
)

// MetricsListener returns a Listener that records admission outcomes,
// delivery outcomes and circuit states on m.
func MetricsListener(m observe.Metrics) Listener {
	if m == nil {
		m = observe.NopMetrics()
	}
	return ListenerFunc(func(ctx context.Context, e Event) {
		switch e.Type {
		case EventEnqueued, EventReplayed, EventRateLimited, EventRejected:
			m.RecordSubmission(ctx, string(e.Type))
		case EventSucceeded:
			m.RecordDelivery(ctx, string(e.Type), e.Provider)
		case EventFailed:
			m.RecordDelivery(ctx, string(e.Type), "")
		case EventCircuitStateChanged:
			m.RecordCircuitState(ctx, e.Provider, e.To.String(), int64(e.To))
		}
	})
}
