package queue

import "errors"

// Sentinel errors for queue operations.
var (
	// ErrFull is returned when the queue is at its maximum depth.
	ErrFull = errors.New("queue: queue is full")

	// ErrNilItem is returned when enqueueing a nil item.
	ErrNilItem = errors.New("queue: item is nil")
)
