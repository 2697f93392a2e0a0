package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/jonwraymond/maildispatch/resilience"
)

// IngressConfig configures per-client request throttling.
type IngressConfig struct {
	// Rate is the sustained requests per second per client IP. Zero disables
	// throttling.
	Rate float64

	// Burst is the bucket size per client IP.
	Burst int

	// IdleTTL is how long an idle client's bucket is kept.
	// Default: 5 minutes
	IdleTTL time.Duration

	// Clock drives idle cleanup.
	// Default: the real clock.
	Clock clockwork.Clock
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// ingressLimiter is a per-IP token bucket limiter with idle cleanup.
type ingressLimiter struct {
	config  IngressConfig
	cleanup *resilience.PeriodicTask

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newIngressLimiter(config IngressConfig) *ingressLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 5 * time.Minute
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	l := &ingressLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
	l.cleanup = resilience.NewPeriodicTask(config.Clock, config.IdleTTL, l.evictIdle)
	l.cleanup.Start()
	return l
}

func (l *ingressLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.config.Rate), l.config.Burst)}
		l.buckets[key] = b
	}
	b.lastAccess = l.config.Clock.Now()
	return b.limiter.Allow()
}

func (l *ingressLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.config.Clock.Now().Add(-l.config.IdleTTL)
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *ingressLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *ingressLimiter) stop() {
	l.cleanup.Stop()
}

// middleware rejects requests over the client's rate with 429.
func (l *ingressLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP
// middleware has already rewritten from forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
