package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestExecutor_NoPatterns(t *testing.T) {
	e := NewExecutor()

	executed := false
	err := e.Execute(context.Background(), func(context.Context) error {
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if !executed {
		t.Error("Operation was not executed")
	}
	if e.CircuitBreaker() != nil {
		t.Error("CircuitBreaker() should be nil when not configured")
	}
}

func TestExecutor_BreakerRecordsEachRetriedAttempt(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 10})
	clock := clockwork.NewFakeClock()
	e := NewExecutor(
		WithCircuitBreaker(cb),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, Clock: clock})),
	)

	done := make(chan error, 1)
	go func() {
		done <- e.Execute(context.Background(), failOp)
	}()
	advanceWaiter(t, clock, time.Second)
	advanceWaiter(t, clock, 2*time.Second)

	if err := <-done; !errors.Is(err, errSend) {
		t.Fatalf("Execute() = %v, want %v", err, errSend)
	}
	if got := cb.Metrics().Failures; got != 3 {
		t.Errorf("breaker Failures = %d, want 3", got)
	}
}

func TestExecutor_OpenCircuitStopsRetries(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 1})
	e := NewExecutor(
		WithCircuitBreaker(cb),
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})),
	)

	calls := 0
	err := e.Execute(context.Background(), func(context.Context) error {
		calls++
		return errSend
	})

	// First attempt opens the circuit; the retry then sees ErrCircuitOpen.
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() = %v, want ErrCircuitOpen", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecutor_TimeoutCountsAsFailure(t *testing.T) {
	cb, _ := newTestBreaker(t, CircuitBreakerConfig{FailureThreshold: 1})
	e := NewExecutor(
		WithCircuitBreaker(cb),
		WithTimeout(10*time.Millisecond),
	)

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() = %v, want ErrTimeout", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want circuit_open", cb.State())
	}
}
