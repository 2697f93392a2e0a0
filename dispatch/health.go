package dispatch

import (
	"context"
	"fmt"

	"github.com/jonwraymond/maildispatch/health"
	"github.com/jonwraymond/maildispatch/provider"
	"github.com/jonwraymond/maildispatch/queue"
	"github.com/jonwraymond/maildispatch/resilience"
)

// queueWarningRatio is the fill ratio at which the queue reports degraded.
const queueWarningRatio = 0.8

// ProviderChecker reports pool health from its circuit states: unhealthy
// when every circuit is open, degraded when any circuit is open or degraded.
func ProviderChecker(pool *provider.Pool) health.Checker {
	return health.NewCheckerFunc("providers", func(ctx context.Context) health.Result {
		if err := ctx.Err(); err != nil {
			return health.Unhealthy("context cancelled", err)
		}

		members := pool.Members()
		details := make(map[string]any, len(members))
		var open, degraded int
		for _, m := range members {
			state := m.State()
			details[m.Name()] = state.String()
			switch state {
			case resilience.StateOpen:
				open++
			case resilience.StateDegraded:
				degraded++
			}
		}

		switch {
		case open == len(members):
			return health.Unhealthy("all provider circuits open", health.ErrCheckFailed).WithDetails(details)
		case open > 0 || degraded > 0:
			return health.Degraded(fmt.Sprintf("%d open, %d degraded of %d providers", open, degraded, len(members))).WithDetails(details)
		default:
			return health.Healthy(fmt.Sprintf("%d providers healthy", len(members))).WithDetails(details)
		}
	})
}

// QueueChecker reports work queue depth: unhealthy when full, degraded at
// 80% of MaxDepth. An unbounded queue is always healthy.
func QueueChecker(q *queue.Queue) health.Checker {
	return health.NewCheckerFunc("queue", func(ctx context.Context) health.Result {
		if err := ctx.Err(); err != nil {
			return health.Unhealthy("context cancelled", err)
		}

		depth, maxDepth := q.Len(), q.MaxDepth()
		details := map[string]any{"depth": depth, "max_depth": maxDepth}

		if maxDepth == 0 {
			return health.Healthy(fmt.Sprintf("%d queued", depth)).WithDetails(details)
		}
		if depth >= maxDepth {
			return health.Unhealthy("queue full", queue.ErrFull).WithDetails(details)
		}
		if float64(depth) >= queueWarningRatio*float64(maxDepth) {
			return health.Degraded(fmt.Sprintf("queue at %d of %d", depth, maxDepth)).WithDetails(details)
		}
		return health.Healthy(fmt.Sprintf("queue at %d of %d", depth, maxDepth)).WithDetails(details)
	})
}
