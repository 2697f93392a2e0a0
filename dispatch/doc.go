// Package dispatch coordinates admission and background delivery of email.
//
// Submit fingerprints a message, replays a cached result when one exists,
// applies the per-recipient rate limit and enqueues the message. A single
// drain loop started with Start delivers queued messages one at a time
// through a provider.Pool and settles each caller's queue.Future.
//
// # Lifecycle Events
//
// Listeners registered with Subscribe observe every admission and delivery
// step. MetricsListener turns those events into OpenTelemetry metrics.
//
//	d, _ := dispatch.New(pool, dispatch.WithLimiter(limiter))
//	d.Subscribe(dispatch.MetricsListener(metrics))
//	d.Start(ctx)
//	defer d.Stop(context.Background())
//
//	future, err := d.Submit(ctx, msg)
//	if err != nil {
//	    return err // rate limited, queue full or stopped
//	}
//	result, err := future.Wait(ctx)
package dispatch
