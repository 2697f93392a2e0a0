package resilience

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SlidingWindowConfig configures the sliding window rate limiter.
type SlidingWindowConfig struct {
	// MaxRequests is the number of requests allowed per key within Window.
	// Default: 100
	MaxRequests int

	// Window is the trailing interval over which requests are counted.
	// Default: 60 seconds
	Window time.Duration

	// PruneInterval is how often keys with empty windows are dropped.
	// Zero disables background pruning.
	// Default: 0
	PruneInterval time.Duration

	// Clock supplies the current time.
	// Default: the real clock.
	Clock clockwork.Clock
}

// WindowStats describes the state of one key's window.
type WindowStats struct {
	Current   int
	Remaining int
	Window    time.Duration
}

// SlidingWindowLimiter admits at most MaxRequests per key in any trailing
// Window. Timestamps older than the window are discarded on every call.
type SlidingWindowLimiter struct {
	config SlidingWindowConfig
	prune  *PeriodicTask

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewSlidingWindowLimiter creates a new sliding window limiter.
func NewSlidingWindowLimiter(config SlidingWindowConfig) *SlidingWindowLimiter {
	// Apply defaults
	if config.MaxRequests <= 0 {
		config.MaxRequests = 100
	}
	if config.Window <= 0 {
		config.Window = 60 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	l := &SlidingWindowLimiter{
		config:  config,
		windows: make(map[string][]time.Time),
	}
	l.prune = NewPeriodicTask(config.Clock, config.PruneInterval, l.Prune)
	l.prune.Start()
	return l
}

// Allow records a request for key and reports whether it is within the limit.
// Denied requests are not recorded.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.config.Clock.Now()
	window := l.trimLocked(key, now)
	if len(window) >= l.config.MaxRequests {
		return false
	}

	l.windows[key] = append(window, now)
	return true
}

// Stats returns the current window state for key.
func (l *SlidingWindowLimiter) Stats(key string) WindowStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := len(l.trimLocked(key, l.config.Clock.Now()))
	return WindowStats{
		Current:   current,
		Remaining: max(0, l.config.MaxRequests-current),
		Window:    l.config.Window,
	}
}

// Prune drops every key whose window holds no live timestamps.
func (l *SlidingWindowLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.config.Clock.Now()
	for key := range l.windows {
		l.trimLocked(key, now)
	}
}

// Keys returns the number of keys currently tracked.
func (l *SlidingWindowLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops background pruning.
func (l *SlidingWindowLimiter) Close() {
	l.prune.Stop()
}

// trimLocked removes timestamps at or before now-Window and returns what is
// left. Keys left empty are deleted.
func (l *SlidingWindowLimiter) trimLocked(key string, now time.Time) []time.Time {
	window, ok := l.windows[key]
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.config.Window)
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	if i == len(window) {
		delete(l.windows, key)
		return nil
	}
	if i > 0 {
		window = append(window[:0], window[i:]...)
		l.windows[key] = window
	}
	return window
}
