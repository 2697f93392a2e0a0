package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/maildispatch/cache"
	"github.com/jonwraymond/maildispatch/email"
	"github.com/jonwraymond/maildispatch/observe"
	"github.com/jonwraymond/maildispatch/provider"
	"github.com/jonwraymond/maildispatch/queue"
	"github.com/jonwraymond/maildispatch/resilience"
)

// DefaultPollInterval is the pause between drain loop iterations.
const DefaultPollInterval = 100 * time.Millisecond

// Limiter admits or denies a request for a key.
type Limiter interface {
	Allow(key string) bool
}

// Dispatcher admits messages and delivers them from a background drain loop.
//
// Contract:
// - Concurrency: Submit, Subscribe and Stop are safe for concurrent use.
// - Delivery: exactly one drain loop runs per Dispatcher and delivers one
//   item at a time.
// - Settlement: every Future returned by Submit settles exactly once,
//   including for items still queued when Stop is called.
type Dispatcher struct {
	pool         *provider.Pool
	keyer        cache.Keyer
	cache        cache.Cache[email.Result]
	limiter      Limiter
	queue        *queue.Queue
	clock        clockwork.Clock
	logger       observe.Logger
	pollInterval time.Duration
	closers      []func()

	listenerMu sync.RWMutex
	listeners  []subscription
	nextID     uint64

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type subscription struct {
	id       uint64
	listener Listener
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCache sets the idempotency cache.
// Default: a MemoryCache with cache.DefaultPolicy.
func WithCache(c cache.Cache[email.Result]) Option {
	return func(d *Dispatcher) { d.cache = c }
}

// WithKeyer sets the fingerprint function.
// Default: cache.DefaultKeyer.
func WithKeyer(k cache.Keyer) Option {
	return func(d *Dispatcher) { d.keyer = k }
}

// WithLimiter sets the per-recipient rate limiter.
// Default: a SlidingWindowLimiter with its default window.
func WithLimiter(l Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithQueue sets the work queue.
// Default: an unbounded queue.
func WithQueue(q *queue.Queue) Option {
	return func(d *Dispatcher) { d.queue = q }
}

// WithClock sets the clock for timestamps and the drain loop pause.
// Default: the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the logger.
// Default: no-op logger.
func WithLogger(l observe.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithPollInterval sets the pause between drain loop iterations.
// Default: DefaultPollInterval.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.pollInterval = interval }
}

// SubmitOption configures a single Submit call.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	priority int
}

// WithPriority sets the message priority. Higher priorities are delivered first.
// Default: 0
func WithPriority(priority int) SubmitOption {
	return func(o *submitOptions) { o.priority = priority }
}

// New creates a Dispatcher delivering through pool.
func New(pool *provider.Pool, opts ...Option) (*Dispatcher, error) {
	if pool == nil {
		return nil, ErrNilPool
	}

	d := &Dispatcher{pool: pool}
	for _, opt := range opts {
		opt(d)
	}

	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if d.logger == nil {
		d.logger = observe.NopLogger()
	}
	if d.pollInterval <= 0 {
		d.pollInterval = DefaultPollInterval
	}
	if d.keyer == nil {
		d.keyer = cache.NewDefaultKeyer()
	}
	if d.cache == nil {
		mc := cache.NewMemoryCache[email.Result](cache.DefaultPolicy(), cache.WithClock(d.clock))
		d.cache = mc
		d.closers = append(d.closers, mc.Close)
	}
	if d.limiter == nil {
		l := resilience.NewSlidingWindowLimiter(resilience.SlidingWindowConfig{Clock: d.clock})
		d.limiter = l
		d.closers = append(d.closers, l.Close)
	}
	if d.queue == nil {
		d.queue = queue.New(queue.Config{})
	}

	pool.OnStateChange(d.circuitChanged)
	return d, nil
}

// Queue returns the dispatcher's work queue.
func (d *Dispatcher) Queue() *queue.Queue {
	return d.queue
}

// Pool returns the dispatcher's provider pool.
func (d *Dispatcher) Pool() *provider.Pool {
	return d.pool
}

// Subscribe registers l for lifecycle events and returns a function that
// removes it.
func (d *Dispatcher) Subscribe(l Listener) (unsubscribe func()) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, subscription{id: id, listener: l})

	return func() {
		d.listenerMu.Lock()
		defer d.listenerMu.Unlock()
		for i, sub := range d.listeners {
			if sub.id == id {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// Submit admits msg for delivery.
//
// A message whose fingerprint has a cached result returns an already
// resolved Future without touching the rate limiter or queue. Otherwise the
// recipient's rate limit is checked and the message is queued; the returned
// Future settles once the drain loop has processed it.
func (d *Dispatcher) Submit(ctx context.Context, msg email.Message, opts ...SubmitOption) (*queue.Future, error) {
	var so submitOptions
	for _, opt := range opts {
		opt(&so)
	}

	if d.isStopped() {
		d.emit(ctx, Event{Type: EventRejected, Recipient: msg.To, Priority: so.priority, Err: ErrStopped})
		return nil, ErrStopped
	}

	fingerprint, err := d.keyer.Key(msg.Canonical())
	if err != nil {
		return nil, fmt.Errorf("dispatch: fingerprint message: %w", err)
	}

	if result, ok := d.cache.Get(ctx, fingerprint); ok {
		d.logger.Debug(ctx, "replaying cached result",
			observe.Field{Key: "fingerprint", Value: fingerprint},
			observe.Field{Key: "message_id", Value: result.ID},
		)
		d.emit(ctx, Event{Type: EventReplayed, Fingerprint: fingerprint, Recipient: msg.To, Result: result, Provider: result.Provider})
		return queue.Resolved(result), nil
	}

	// Capacity is checked before the limiter records the request.
	if d.queueFull() {
		return nil, d.reject(ctx, msg, fingerprint, so.priority, ErrQueueFull)
	}

	if !d.limiter.Allow(msg.To) {
		d.logger.Warn(ctx, "rate limit exceeded", observe.Field{Key: "to", Value: msg.To})
		d.emit(ctx, Event{Type: EventRateLimited, Fingerprint: fingerprint, Recipient: msg.To, Priority: so.priority, Err: ErrRateLimited})
		return nil, ErrRateLimited
	}

	item, future := queue.NewItem(msg, fingerprint, so.priority, d.clock.Now())
	if err := d.enqueue(item); err != nil {
		if errors.Is(err, queue.ErrFull) {
			err = ErrQueueFull
		}
		return nil, d.reject(ctx, msg, fingerprint, so.priority, err)
	}

	d.emit(ctx, Event{Type: EventEnqueued, Fingerprint: fingerprint, Recipient: msg.To, Priority: so.priority})
	return future, nil
}

// Start launches the drain loop. Calling Start while the loop is running, or
// after Stop, does nothing. The loop exits when ctx is done or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running || d.stopped {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	d.running = true
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(ctx, d.done)
}

// Running reports whether the drain loop is active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Stop halts the drain loop, waits for the in-flight delivery to finish or
// ctx to expire, and rejects every item still queued with ErrStopped.
// Later Submit calls fail with ErrStopped. Stop is idempotent.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	for _, item := range d.queue.Drain() {
		item.Reject(ErrStopped)
		d.emit(ctx, Event{Type: EventFailed, Fingerprint: item.Fingerprint, Recipient: item.Message.To, Priority: item.Priority, Err: ErrStopped})
	}

	for _, closeFn := range d.closers {
		closeFn()
	}
	return err
}

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		close(done)
	}()

	d.logger.Info(ctx, "drain loop started", observe.Field{Key: "poll_interval_ms", Value: d.pollInterval.Milliseconds()})

	// At most one item per poll interval.
	for {
		if item, ok := d.queue.Dequeue(); ok {
			d.process(ctx, item)
		}

		select {
		case <-ctx.Done():
			d.logger.Info(context.WithoutCancel(ctx), "drain loop stopped")
			return
		case <-d.clock.After(d.pollInterval):
		}
	}
}

// process delivers one item and settles its future.
func (d *Dispatcher) process(ctx context.Context, item *queue.Item) {
	result, err := d.pool.Deliver(ctx, item.Message, provider.Hooks{
		OnAttempt: func(name string) {
			item.Attempts++
			d.emit(ctx, Event{
				Type:        EventAttempted,
				Fingerprint: item.Fingerprint,
				Recipient:   item.Message.To,
				Priority:    item.Priority,
				Provider:    name,
				Attempt:     item.Attempts,
			})
		},
	})

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrStopped, err)
		}
		d.logger.Error(ctx, "email delivery failed",
			observe.Field{Key: "to", Value: item.Message.To},
			observe.Field{Key: "fingerprint", Value: item.Fingerprint},
			observe.Field{Key: "attempts", Value: item.Attempts},
			observe.Field{Key: "error", Value: err.Error()},
		)
		item.Reject(err)
		d.emit(ctx, Event{
			Type:        EventFailed,
			Fingerprint: item.Fingerprint,
			Recipient:   item.Message.To,
			Priority:    item.Priority,
			Attempt:     item.Attempts,
			Err:         err,
		})
		return
	}

	if err := d.cache.Set(ctx, item.Fingerprint, result); err != nil {
		d.logger.Warn(ctx, "failed to cache delivery result",
			observe.Field{Key: "fingerprint", Value: item.Fingerprint},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}

	d.logger.Info(ctx, "email delivered",
		observe.Field{Key: "to", Value: item.Message.To},
		observe.Field{Key: "provider", Value: result.Provider},
		observe.Field{Key: "message_id", Value: result.ID},
		observe.Field{Key: "attempts", Value: item.Attempts},
	)
	item.Resolve(result)
	d.emit(ctx, Event{
		Type:        EventSucceeded,
		Fingerprint: item.Fingerprint,
		Recipient:   item.Message.To,
		Priority:    item.Priority,
		Provider:    result.Provider,
		Attempt:     item.Attempts,
		Result:      result,
	})
}

func (d *Dispatcher) circuitChanged(name string, from, to resilience.State) {
	ctx := context.Background()
	d.logger.Info(ctx, "circuit state changed",
		observe.Field{Key: "provider", Value: name},
		observe.Field{Key: "from", Value: from.String()},
		observe.Field{Key: "to", Value: to.String()},
	)
	d.emit(ctx, Event{Type: EventCircuitStateChanged, Provider: name, From: from, To: to})
}

func (d *Dispatcher) emit(ctx context.Context, e Event) {
	e.Time = d.clock.Now()

	d.listenerMu.RLock()
	subs := make([]subscription, len(d.listeners))
	copy(subs, d.listeners)
	d.listenerMu.RUnlock()

	for _, sub := range subs {
		sub.listener.OnEvent(ctx, e)
	}
}

// enqueue adds item unless the dispatcher has stopped, so Stop never misses
// an item it should reject.
func (d *Dispatcher) enqueue(item *queue.Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	return d.queue.Enqueue(item)
}

func (d *Dispatcher) reject(ctx context.Context, msg email.Message, fingerprint string, priority int, err error) error {
	d.logger.Warn(ctx, "message rejected",
		observe.Field{Key: "to", Value: msg.To},
		observe.Field{Key: "error", Value: err.Error()},
	)
	d.emit(ctx, Event{Type: EventRejected, Fingerprint: fingerprint, Recipient: msg.To, Priority: priority, Err: err})
	return err
}

func (d *Dispatcher) queueFull() bool {
	limit := d.queue.MaxDepth()
	return limit > 0 && d.queue.Len() >= limit
}

func (d *Dispatcher) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}
