package queue

import (
	"context"
	"sync"

	"github.com/jonwraymond/maildispatch/email"
)

// Future is the read side of a pending delivery.
//
// Contract:
// - Settlement happens exactly once, through the paired Completer.
// - Wait may be called any number of times from any goroutine.
// - A caller that stops waiting does not cancel the delivery.
type Future struct {
	done   chan struct{}
	result email.Result
	err    error
}

// Completer is the single-use write side of a Future.
type Completer struct {
	future *Future
	once   sync.Once
}

// NewFuture returns an unsettled Future and its Completer.
func NewFuture() (*Future, *Completer) {
	f := &Future{done: make(chan struct{})}
	return f, &Completer{future: f}
}

// Resolved returns a Future already settled with result.
func Resolved(result email.Result) *Future {
	f, c := NewFuture()
	c.Resolve(result)
	return f
}

// Rejected returns a Future already settled with err.
func Rejected(err error) *Future {
	f, c := NewFuture()
	c.Reject(err)
	return f
}

// Wait blocks until the Future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (email.Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return email.Result{}, ctx.Err()
	}
}

// Done returns a channel closed once the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the Future has settled.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Resolve settles the Future with result. It reports false if the Future was
// already settled.
func (c *Completer) Resolve(result email.Result) bool {
	return c.settle(result, nil)
}

// Reject settles the Future with err. It reports false if the Future was
// already settled.
func (c *Completer) Reject(err error) bool {
	return c.settle(email.Result{}, err)
}

func (c *Completer) settle(result email.Result, err error) bool {
	settled := false
	c.once.Do(func() {
		c.future.result = result
		c.future.err = err
		close(c.future.done)
		settled = true
	})
	return settled
}
