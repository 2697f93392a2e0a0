package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestLimiter(t *testing.T, config SlidingWindowConfig) (*SlidingWindowLimiter, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	config.Clock = clock
	l := NewSlidingWindowLimiter(config)
	t.Cleanup(l.Close)
	return l, clock
}

func TestNewSlidingWindowLimiter_Defaults(t *testing.T) {
	l, _ := newTestLimiter(t, SlidingWindowConfig{})

	if l.config.MaxRequests != 100 {
		t.Errorf("MaxRequests = %d, want 100", l.config.MaxRequests)
	}
	if l.config.Window != 60*time.Second {
		t.Errorf("Window = %v, want 60s", l.config.Window)
	}
}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	l, clock := newTestLimiter(t, SlidingWindowConfig{
		MaxRequests: 2,
		Window:      time.Second,
	})

	const key = "a@example.com"
	if !l.Allow(key) {
		t.Fatal("first request should be allowed")
	}
	clock.Advance(100 * time.Millisecond)
	if !l.Allow(key) {
		t.Fatal("second request should be allowed")
	}
	clock.Advance(100 * time.Millisecond)
	if l.Allow(key) {
		t.Fatal("third request within window should be denied")
	}

	// The first timestamp leaves the window; one slot opens.
	clock.Advance(850 * time.Millisecond)
	if !l.Allow(key) {
		t.Error("request after oldest entry expired should be allowed")
	}
	if l.Allow(key) {
		t.Error("window should be full again")
	}
}

func TestSlidingWindowLimiter_DeniedNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(t, SlidingWindowConfig{
		MaxRequests: 1,
		Window:      time.Second,
	})

	l.Allow("k")
	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Millisecond)
		l.Allow("k")
	}

	clock.Advance(600 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("denied requests must not extend the window")
	}
}

func TestSlidingWindowLimiter_KeysIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, SlidingWindowConfig{MaxRequests: 1, Window: time.Minute})

	if !l.Allow("a@example.com") {
		t.Error("a should be allowed")
	}
	if !l.Allow("b@example.com") {
		t.Error("b should be allowed independently of a")
	}
	if l.Allow("a@example.com") {
		t.Error("a should be denied")
	}
}

func TestSlidingWindowLimiter_Stats(t *testing.T) {
	l, clock := newTestLimiter(t, SlidingWindowConfig{MaxRequests: 3, Window: time.Second})

	l.Allow("k")
	l.Allow("k")

	stats := l.Stats("k")
	if stats.Current != 2 || stats.Remaining != 1 || stats.Window != time.Second {
		t.Errorf("Stats() = %+v, want {2 1 1s}", stats)
	}

	clock.Advance(2 * time.Second)
	stats = l.Stats("k")
	if stats.Current != 0 || stats.Remaining != 3 {
		t.Errorf("Stats() after window = %+v, want {0 3 1s}", stats)
	}
}

func TestSlidingWindowLimiter_Prune(t *testing.T) {
	l, clock := newTestLimiter(t, SlidingWindowConfig{MaxRequests: 5, Window: time.Second})

	l.Allow("a")
	l.Allow("b")
	clock.Advance(500 * time.Millisecond)
	l.Allow("c")
	clock.Advance(600 * time.Millisecond)

	l.Prune()
	if got := l.Keys(); got != 1 {
		t.Errorf("Keys() after prune = %d, want 1", got)
	}
}

func TestSlidingWindowLimiter_BackgroundPrune(t *testing.T) {
	l, clock := newTestLimiter(t, SlidingWindowConfig{
		MaxRequests:   5,
		Window:        time.Second,
		PruneInterval: time.Minute,
	})

	l.Allow("a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("prune ticker not registered: %v", err)
	}

	clock.Advance(time.Minute)
	waitFor(t, func() bool { return l.Keys() == 0 })
}

func TestSlidingWindowLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, SlidingWindowConfig{MaxRequests: 50, Window: time.Minute})

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}
