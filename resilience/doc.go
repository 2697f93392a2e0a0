// Package resilience provides the failure-handling primitives used to guard
// calls to email providers.
//
// # Patterns
//
//   - Circuit Breaker: stops calling a provider after repeated failures and
//     lets a single trial call through once the reset timeout elapses. The
//     failure count decays by one every MonitoringPeriod.
//
//   - Sliding Window Limiter: admits at most N requests per key in any
//     trailing window.
//
//   - Retry: retries failed attempts with exponential, linear or constant
//     backoff. Circuit-open errors are never retried.
//
//   - Timeout: bounds each attempt.
//
//   - PeriodicTask: an owned ticker used for breaker decay and limiter
//     pruning. All timing goes through a clockwork.Clock so tests can drive
//     it with a fake clock.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    ResetTimeout:     time.Minute,
//	})
//	defer cb.Close()
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return sendEmail(ctx)
//	})
package resilience
