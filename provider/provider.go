package provider

import (
	"context"

	"github.com/jonwraymond/maildispatch/email"
)

// Provider delivers a message through one backend.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Send must return promptly once ctx is done.
// - Errors: a returned error means the message was not delivered by this
//   provider; the pool fails over to the next one.
type Provider interface {
	// Name returns the provider name used in results, logs and metrics.
	Name() string

	// Send attempts delivery of msg.
	Send(ctx context.Context, msg email.Message) (email.Result, error)
}

// Kinded is implemented by providers that report a backend kind for telemetry.
type Kinded interface {
	Kind() string
}

// kindOf returns the provider's kind, or empty when it does not report one.
func kindOf(p Provider) string {
	if k, ok := p.(Kinded); ok {
		return k.Kind()
	}
	return ""
}

// funcProvider adapts a function to Provider.
type funcProvider struct {
	name string
	fn   func(ctx context.Context, msg email.Message) (email.Result, error)
}

// Func returns a Provider named name that delegates Send to fn.
func Func(name string, fn func(ctx context.Context, msg email.Message) (email.Result, error)) Provider {
	return &funcProvider{name: name, fn: fn}
}

func (p *funcProvider) Name() string { return p.name }
func (p *funcProvider) Kind() string { return "func" }

func (p *funcProvider) Send(ctx context.Context, msg email.Message) (email.Result, error) {
	return p.fn(ctx, msg)
}
