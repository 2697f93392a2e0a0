package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State represents the circuit breaker state.
type State int

const (
	// StateHealthy means calls pass through to the protected operation.
	StateHealthy State = iota
	// StateDegraded means the circuit is probing recovery with trial calls.
	StateDegraded
	// StateOpen means calls fail fast without reaching the operation.
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failure count that opens the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open after the last failure
	// before a trial call is let through.
	// Default: 60 seconds
	ResetTimeout time.Duration

	// MonitoringPeriod is the interval on which the failure count decays by one.
	// Default: 300 seconds
	MonitoringPeriod time.Duration

	// HalfOpenMaxTrials is the number of trial calls allowed in flight while
	// degraded. Calls beyond it fail fast with ErrCircuitOpen.
	// Default: 1
	HalfOpenMaxTrials int

	// OnStateChange is called after the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Clock drives failure timestamps and the decay task.
	// Default: the real clock.
	Clock clockwork.Clock
}

// CircuitBreaker implements the circuit breaker pattern with a decaying
// failure counter.
//
// The failure count is not a strict consecutive-failure count: it resets on
// success and also ages out by one every MonitoringPeriod.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	decay  *PeriodicTask

	mu            sync.Mutex
	state         State
	failures      int
	successes     int64
	totalRequests int64
	lastFailure   time.Time
	trials        int
}

// NewCircuitBreaker creates a new circuit breaker and starts its decay task.
// Call Close to stop the decay task.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if config.MonitoringPeriod <= 0 {
		config.MonitoringPeriod = 300 * time.Second
	}
	if config.HalfOpenMaxTrials <= 0 {
		config.HalfOpenMaxTrials = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	cb := &CircuitBreaker{
		config: config,
		state:  StateHealthy,
	}
	cb.decay = NewPeriodicTask(config.Clock, config.MonitoringPeriod, cb.Decay)
	cb.decay.Start()
	return cb
}

// Execute runs the operation through the circuit breaker.
//
// While the circuit is open and the reset timeout has not elapsed, Execute
// returns ErrCircuitOpen without calling op. The first call after the timeout
// moves the circuit to degraded and runs as a trial.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	trial, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.afterRequest(err, trial)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset returns the circuit breaker to the healthy state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateHealthy
	cb.failures = 0
	cb.trials = 0
	cb.mu.Unlock()

	cb.notify(from, StateHealthy)
}

// Decay lowers the failure count by one, never below zero.
// It runs automatically every MonitoringPeriod.
func (cb *CircuitBreaker) Decay() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.failures > 0 {
		cb.failures--
	}
}

// Close stops the decay task. The breaker remains usable.
func (cb *CircuitBreaker) Close() {
	cb.decay.Stop()
}

func (cb *CircuitBreaker) beforeRequest() (trial bool, err error) {
	cb.mu.Lock()
	cb.totalRequests++

	from := cb.state
	if cb.state == StateOpen {
		if cb.config.Clock.Since(cb.lastFailure) < cb.config.ResetTimeout {
			cb.mu.Unlock()
			return false, ErrCircuitOpen
		}
		cb.state = StateDegraded
		cb.failures = 0
		cb.trials = 0
	}

	if cb.state == StateDegraded {
		if cb.trials >= cb.config.HalfOpenMaxTrials {
			cb.mu.Unlock()
			cb.notify(from, StateDegraded)
			return false, ErrCircuitOpen
		}
		cb.trials++
		trial = true
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return trial, nil
}

func (cb *CircuitBreaker) afterRequest(err error, trial bool) {
	cb.mu.Lock()

	from := cb.state
	if trial && cb.trials > 0 {
		cb.trials--
	}

	if cb.config.IsFailure(err) {
		cb.failures++
		cb.lastFailure = cb.config.Clock.Now()
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.trials = 0
		}
	} else {
		cb.successes++
		cb.failures = 0
		if cb.state == StateDegraded {
			cb.state = StateHealthy
			cb.trials = 0
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:         cb.state,
		Failures:      cb.failures,
		Successes:     cb.successes,
		TotalRequests: cb.totalRequests,
		LastFailure:   cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State         State
	Failures      int
	Successes     int64
	TotalRequests int64
	LastFailure   time.Time
}
