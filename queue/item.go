package queue

import (
	"time"

	"github.com/jonwraymond/maildispatch/email"
)

// Item is one accepted message waiting for delivery.
type Item struct {
	Message     email.Message
	Fingerprint string
	Priority    int
	EnqueuedAt  time.Time
	Attempts    int

	completer *Completer
	seq       uint64
}

// NewItem creates an item for msg and returns it with the Future its caller
// waits on.
func NewItem(msg email.Message, fingerprint string, priority int, now time.Time) (*Item, *Future) {
	future, completer := NewFuture()
	return &Item{
		Message:     msg,
		Fingerprint: fingerprint,
		Priority:    priority,
		EnqueuedAt:  now,
		completer:   completer,
	}, future
}

// Resolve settles the item's Future with result.
func (it *Item) Resolve(result email.Result) bool {
	return it.completer.Resolve(result)
}

// Reject settles the item's Future with err.
func (it *Item) Reject(err error) bool {
	return it.completer.Reject(err)
}
