package provider

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/maildispatch/email"
)

// SimulatedConfig configures a simulated provider.
type SimulatedConfig struct {
	// Name is the provider name. Required.
	Name string

	// FailureRate is the probability in [0, 1] that a send fails.
	FailureRate float64

	// Latency is the upper bound of the random delay before each send
	// completes. Zero means no delay.
	// Default: 0
	Latency time.Duration

	// Clock drives the delay and result timestamps.
	// Default: the real clock.
	Clock clockwork.Clock
}

// Simulated is a provider that waits a random time shorter than Latency and
// then fails with probability FailureRate.
type Simulated struct {
	config   SimulatedConfig
	requests atomic.Int64
}

// NewSimulated creates a simulated provider.
func NewSimulated(config SimulatedConfig) (*Simulated, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("%w: simulated provider name is required", ErrInvalidConfig)
	}
	if config.FailureRate < 0 || config.FailureRate > 1 {
		return nil, fmt.Errorf("%w: failure rate %v outside [0, 1]", ErrInvalidConfig, config.FailureRate)
	}
	if config.Latency < 0 {
		config.Latency = 0
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &Simulated{config: config}, nil
}

// Name returns the provider name.
func (s *Simulated) Name() string { return s.config.Name }

// Kind returns "simulated".
func (s *Simulated) Kind() string { return "simulated" }

// Requests returns the number of Send calls made so far.
func (s *Simulated) Requests() int64 { return s.requests.Load() }

// Send waits the simulated latency and then succeeds or fails at random.
func (s *Simulated) Send(ctx context.Context, _ email.Message) (email.Result, error) {
	s.requests.Add(1)

	if s.config.Latency > 0 {
		// #nosec G404 -- simulated latency is not security sensitive.
		delay := time.Duration(rand.Int64N(int64(s.config.Latency)))
		select {
		case <-ctx.Done():
			return email.Result{}, ctx.Err()
		case <-s.config.Clock.After(delay):
		}
	}

	// #nosec G404 -- simulated failure is not security sensitive.
	if rand.Float64() < s.config.FailureRate {
		return email.Result{}, fmt.Errorf("%w: %s", ErrProviderFailure, s.config.Name)
	}

	return email.NewResult(s.config.Name, s.config.Clock.Now()), nil
}
