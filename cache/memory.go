package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jonwraymond/maildispatch/resilience"
)

// MemoryCache is an in-memory cache implementation.
//
// Entries are kept in write order, so with a fixed TTL the front of the list
// is always the next to expire and the first to be evicted.
type MemoryCache[V any] struct {
	policy Policy
	clock  clockwork.Clock
	sweep  *resilience.PeriodicTask

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	clock clockwork.Clock
}

// WithClock sets the clock used for expiry and sweeping.
func WithClock(clock clockwork.Clock) MemoryOption {
	return func(o *memoryOptions) {
		o.clock = clock
	}
}

// NewMemoryCache creates a new in-memory cache with the given policy and
// starts its background sweep when the policy has one. Call Close to stop it.
func NewMemoryCache[V any](policy Policy, opts ...MemoryOption) *MemoryCache[V] {
	o := memoryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}

	c := &MemoryCache[V]{
		policy:  policy,
		clock:   o.clock,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	if policy.Expires() {
		c.sweep = resilience.NewPeriodicTask(o.clock, policy.SweepInterval, c.Sweep)
		c.sweep.Start()
	}
	return c
}

// Get retrieves a value from the cache. Returns (zero, false) on miss or expiry.
func (c *MemoryCache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*cacheEntry[V])
	if c.expiredLocked(entry, c.clock.Now()) {
		c.removeLocked(elem)
		return zero, false
	}
	return entry.value, true
}

// Set stores a value. Rewriting a key refreshes its expiry and moves it to
// the back of the eviction order.
func (c *MemoryCache[V]) Set(_ context.Context, key string, value V) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.policy.ExpiresAt(c.clock.Now())
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToBack(elem)
		return nil
	}

	if c.policy.Bounded() {
		for c.order.Len() >= c.policy.MaxEntries {
			c.removeLocked(c.order.Front())
		}
	}

	c.entries[key] = c.order.PushBack(&cacheEntry[V]{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})
	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache[V]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Sweep removes every expired entry.
func (c *MemoryCache[V]) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if c.expiredLocked(elem.Value.(*cacheEntry[V]), now) {
			c.removeLocked(elem)
		}
		elem = next
	}
}

// Close stops the background sweep. The cache remains usable.
func (c *MemoryCache[V]) Close() {
	if c.sweep != nil {
		c.sweep.Stop()
	}
}

func (c *MemoryCache[V]) expiredLocked(entry *cacheEntry[V], now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}

func (c *MemoryCache[V]) removeLocked(elem *list.Element) {
	entry := c.order.Remove(elem).(*cacheEntry[V])
	delete(c.entries, entry.key)
}

// Ensure MemoryCache implements Cache
var _ Cache[[]byte] = (*MemoryCache[[]byte])(nil)
