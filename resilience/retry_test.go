package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})

	if r.config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", r.config.MaxAttempts)
	}
	if r.config.InitialDelay != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", r.config.InitialDelay)
	}
	if r.config.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", r.config.MaxDelay)
	}
	if r.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", r.config.Multiplier)
	}
}

func TestRetry_SingleAttemptReturnsError(t *testing.T) {
	r := NewRetry(RetryConfig{})

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return errSend
	})

	if err != errSend {
		t.Errorf("Execute() = %v, want unwrapped %v", err, errSend)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RetriesWithBackoff(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var delays []time.Duration
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		Clock:        clock,
		OnRetry: func(_ int, _ error, delay time.Duration) {
			delays = append(delays, delay)
		},
	})

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Execute(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errSend
			}
			return nil
		})
	}()

	advanceWaiter(t, clock, time.Second)
	advanceWaiter(t, clock, 2*time.Second)

	if err := <-done; err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Errorf("delays = %v, want [1s 2s]", delays)
	}
}

func TestRetry_ExhaustedWrapsLastError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRetry(RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Second,
		Clock:        clock,
	})

	done := make(chan error, 1)
	go func() {
		done <- r.Execute(context.Background(), failOp)
	}()
	advanceWaiter(t, clock, time.Second)

	err := <-done
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("Execute() = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, errSend) {
		t.Errorf("Execute() = %v, want wrapped %v", err, errSend)
	}
}

func TestRetry_NeverRetriesCircuitOpen(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5})

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return ErrCircuitOpen
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() = %v, want ErrCircuitOpen", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	r := NewRetry(RetryConfig{
		MaxAttempts: 5,
		RetryIf: func(err error) bool {
			return !errors.Is(err, permanent)
		},
	})

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	if err != permanent {
		t.Errorf("Execute() = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelledDuringWait(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Hour, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Execute(ctx, failOp)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("retry never waited: %v", err)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() = %v, want context.Canceled", err)
	}
}

func TestRetry_CalculateDelay(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{"exponential first", BackoffExponential, 1, 100 * time.Millisecond},
		{"exponential third", BackoffExponential, 3, 400 * time.Millisecond},
		{"exponential capped", BackoffExponential, 10, time.Second},
		{"linear second", BackoffLinear, 2, 200 * time.Millisecond},
		{"constant", BackoffConstant, 5, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{
				MaxAttempts:  10,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     time.Second,
				Multiplier:   2,
				Strategy:     tt.strategy,
			})
			if got := r.calculateDelay(tt.attempt); got != tt.want {
				t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetry_Jitter(t *testing.T) {
	r := NewRetry(RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		Strategy:     BackoffConstant,
		Jitter:       true,
	})

	for i := 0; i < 20; i++ {
		got := r.calculateDelay(1)
		if got < 100*time.Millisecond || got >= 125*time.Millisecond {
			t.Fatalf("jittered delay = %v, want [100ms, 125ms)", got)
		}
	}
}

// advanceWaiter waits for a goroutine to block on the clock, then advances it.
func advanceWaiter(t *testing.T, clock *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("no waiter on clock: %v", err)
	}
	clock.Advance(d)
}
