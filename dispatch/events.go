package dispatch

import (
	"context"
	"time"

	"github.com/jonwraymond/maildispatch/email"
	"github.com/jonwraymond/maildispatch/resilience"
)

// EventType identifies a dispatch lifecycle event.
type EventType string

const (
	// EventEnqueued is emitted when a message is accepted into the queue.
	EventEnqueued EventType = "enqueued"
	// EventReplayed is emitted when Submit returns a cached result.
	EventReplayed EventType = "replayed"
	// EventRateLimited is emitted when Submit rejects a message for its recipient's rate limit.
	EventRateLimited EventType = "rate_limited"
	// EventRejected is emitted when Submit rejects a message because the
	// queue is full or the dispatcher is stopped.
	EventRejected EventType = "rejected"
	// EventAttempted is emitted before each provider attempt.
	EventAttempted EventType = "attempted"
	// EventSucceeded is emitted when a queued message is delivered.
	EventSucceeded EventType = "succeeded"
	// EventFailed is emitted when a queued message settles with an error.
	EventFailed EventType = "failed"
	// EventCircuitStateChanged is emitted on every provider circuit transition.
	EventCircuitStateChanged EventType = "circuit_state_changed"
)

// Event describes one lifecycle step. Fields that do not apply to Type are zero.
type Event struct {
	Type        EventType
	Time        time.Time
	Fingerprint string
	Recipient   string
	Priority    int

	// Provider is set for attempted, succeeded and circuit_state_changed.
	Provider string
	Attempt  int

	Result email.Result
	Err    error

	// From and To are set for circuit_state_changed.
	From resilience.State
	To   resilience.State
}

// Listener receives dispatch events.
//
// Contract:
// - Concurrency: OnEvent may be called from the admission path and the drain
//   loop concurrently.
// - Blocking: OnEvent runs inline and must return quickly.
type Listener interface {
	OnEvent(ctx context.Context, event Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event Event)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}
