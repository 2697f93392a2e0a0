package dispatch

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/maildispatch/provider"
	"github.com/jonwraymond/maildispatch/queue"
	"github.com/jonwraymond/maildispatch/resilience"
)

// Sentinel errors for dispatch operations.
var (
	// ErrRateLimited is returned by Submit when the recipient is over its
	// rate limit. It also matches resilience.ErrRateLimitExceeded.
	ErrRateLimited = fmt.Errorf("dispatch: rate limited: %w", resilience.ErrRateLimitExceeded)

	// ErrQueueFull is returned by Submit when the work queue is at capacity.
	// It also matches queue.ErrFull.
	ErrQueueFull = fmt.Errorf("dispatch: %w", queue.ErrFull)

	// ErrStopped is returned by Submit after Stop and used to reject items
	// still queued when the dispatcher stops.
	ErrStopped = errors.New("dispatch: dispatcher stopped")

	// ErrAllProvidersFailed settles an item's future when every provider
	// failed to deliver it.
	ErrAllProvidersFailed = provider.ErrAllProvidersFailed

	// ErrNilPool is returned by New without a provider pool.
	ErrNilPool = errors.New("dispatch: provider pool is nil")
)
