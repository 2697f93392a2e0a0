package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/maildispatch/email"
	"github.com/jonwraymond/maildispatch/observe"
	"github.com/jonwraymond/maildispatch/resilience"
)

// PoolConfig configures a failover pool.
type PoolConfig struct {
	// Breaker is the template for each member's circuit breaker.
	// OnStateChange and Clock are set by the pool.
	Breaker resilience.CircuitBreakerConfig

	// Retry configures per-provider retries before failing over.
	// Default: one attempt, no retries.
	Retry resilience.RetryConfig

	// AttemptTimeout bounds each provider attempt. Zero disables it.
	AttemptTimeout time.Duration

	// Middleware wraps every send with tracing, metrics and logging.
	// Default: no-op middleware.
	Middleware *observe.Middleware

	// Logger receives failover events.
	// Default: no-op logger.
	Logger observe.Logger

	// Clock drives the breakers and retry waits.
	// Default: the real clock.
	Clock clockwork.Clock
}

// StateChangeFunc is called when a member's circuit changes state.
type StateChangeFunc func(provider string, from, to resilience.State)

// Member is one provider in the pool together with its circuit breaker.
type Member struct {
	provider Provider
	meta     observe.ProviderMeta
	breaker  *resilience.CircuitBreaker
	retry    *resilience.Retry
	executor *resilience.Executor
	send     observe.SendFunc
}

// Name returns the member's provider name.
func (m *Member) Name() string { return m.meta.Name }

// Position returns the member's zero-based failover position.
func (m *Member) Position() int { return m.meta.Position }

// Provider returns the wrapped provider.
func (m *Member) Provider() Provider { return m.provider }

// State returns the member's circuit state.
func (m *Member) State() resilience.State { return m.breaker.State() }

// Metrics returns a snapshot of the member's circuit breaker.
func (m *Member) Metrics() resilience.CircuitBreakerMetrics { return m.breaker.Metrics() }

// Hooks observes a single Deliver call.
type Hooks struct {
	// OnAttempt is called before every attempt on a provider, retries
	// included. An attempt rejected by an open circuit still counts.
	OnAttempt func(provider string)

	// OnFailure is called after a provider fails, before failing over.
	OnFailure func(provider string, err error)
}

// Pool tries its providers in registration order until one succeeds.
//
// Contract:
// - Concurrency: Deliver is safe for concurrent use.
// - Ordering: providers are always tried from the first, so a recovered
//   primary takes traffic back on the next delivery.
// - Errors: when every provider fails, Deliver returns an error matching
//   ErrAllProvidersFailed that also wraps each provider's error.
type Pool struct {
	members []*Member
	logger  observe.Logger

	mu        sync.RWMutex
	listeners []StateChangeFunc
}

// NewPool creates a pool over providers, in failover order.
func NewPool(providers []Provider, config PoolConfig) (*Pool, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Middleware == nil {
		config.Middleware = observe.NewMiddleware(nil, nil, nil)
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	p := &Pool{logger: config.Logger}
	seen := make(map[string]struct{}, len(providers))

	for i, prov := range providers {
		name := prov.Name()
		if _, dup := seen[name]; dup {
			p.Close()
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}

		breakerConfig := config.Breaker
		breakerConfig.Clock = config.Clock
		breakerConfig.OnStateChange = func(from, to resilience.State) {
			p.notify(name, from, to)
		}
		breaker := resilience.NewCircuitBreaker(breakerConfig)

		retryConfig := config.Retry
		retryConfig.Clock = config.Clock

		opts := []resilience.ExecutorOption{resilience.WithCircuitBreaker(breaker)}
		if config.AttemptTimeout > 0 {
			opts = append(opts, resilience.WithTimeout(config.AttemptTimeout))
		}

		sendFn := prov.Send
		p.members = append(p.members, &Member{
			provider: prov,
			meta:     observe.ProviderMeta{Name: name, Kind: kindOf(prov), Position: i},
			breaker:  breaker,
			retry:    resilience.NewRetry(retryConfig),
			executor: resilience.NewExecutor(opts...),
			send: config.Middleware.Wrap(func(ctx context.Context, _ observe.ProviderMeta, msg email.Message) (email.Result, error) {
				return sendFn(ctx, msg)
			}),
		})
	}

	return p, nil
}

// Members returns the pool members in failover order.
func (p *Pool) Members() []*Member {
	out := make([]*Member, len(p.members))
	copy(out, p.members)
	return out
}

// OnStateChange registers fn to be called on every member circuit transition.
func (p *Pool) OnStateChange(fn StateChangeFunc) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Deliver sends msg through the first provider that accepts it.
// A provider whose circuit is open counts as failed and is skipped.
func (p *Pool) Deliver(ctx context.Context, msg email.Message, hooks Hooks) (email.Result, error) {
	var errs []error

	for _, m := range p.members {
		result, err := m.deliver(ctx, msg, hooks.OnAttempt)
		if err == nil {
			return result, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", m.meta.Name, err))
		if hooks.OnFailure != nil {
			hooks.OnFailure(m.meta.Name, err)
		}

		if ctx.Err() != nil {
			break
		}

		p.logger.WithProvider(m.meta).Warn(ctx, "provider failed, trying next",
			observe.Field{Key: "error", Value: err.Error()},
			observe.Field{Key: "circuit.state", Value: m.breaker.State().String()},
		)
	}

	return email.Result{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// Close stops every member's background tasks.
func (p *Pool) Close() {
	for _, m := range p.members {
		m.breaker.Close()
	}
}

// deliver runs retry around breaker and timeout. onAttempt fires in the
// calling goroutine before each try.
func (m *Member) deliver(ctx context.Context, msg email.Message, onAttempt func(provider string)) (email.Result, error) {
	var (
		mu     sync.Mutex
		result email.Result
	)
	send := func(ctx context.Context) error {
		r, err := m.send(ctx, m.meta, msg)
		if err != nil {
			return err
		}
		mu.Lock()
		result = r
		mu.Unlock()
		return nil
	}
	err := m.retry.Execute(ctx, func(ctx context.Context) error {
		if onAttempt != nil {
			onAttempt(m.meta.Name)
		}
		return m.executor.Execute(ctx, send)
	})
	if err != nil {
		return email.Result{}, err
	}

	mu.Lock()
	defer mu.Unlock()
	return result, nil
}

func (p *Pool) notify(provider string, from, to resilience.State) {
	p.mu.RLock()
	listeners := make([]StateChangeFunc, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn(provider, from, to)
	}
}
