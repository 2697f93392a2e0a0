package health

import (
	"context"
	"fmt"
	"runtime"
)

// RuntimeCheckerConfig configures the runtime health checker.
type RuntimeCheckerConfig struct {
	// MaxHeapBytes is the heap size at which the process reports unhealthy.
	// It reports degraded at 80% of it. Zero disables the heap threshold.
	// Default: 0
	MaxHeapBytes uint64

	// MaxGoroutines is the goroutine count at which the process reports
	// degraded. Zero disables the goroutine threshold.
	// Default: 0
	MaxGoroutines int
}

// RuntimeChecker reports Go runtime heap and goroutine usage.
type RuntimeChecker struct {
	config RuntimeCheckerConfig
}

// NewRuntimeChecker creates a runtime checker.
func NewRuntimeChecker(config RuntimeCheckerConfig) *RuntimeChecker {
	return &RuntimeChecker{config: config}
}

// Name returns "runtime".
func (c *RuntimeChecker) Name() string {
	return "runtime"
}

// Check reads runtime statistics and compares them with the thresholds.
func (c *RuntimeChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	goroutines := runtime.NumGoroutine()

	details := map[string]any{
		"heap_alloc_bytes": stats.HeapAlloc,
		"heap_sys_bytes":   stats.HeapSys,
		"num_gc":           stats.NumGC,
		"goroutines":       goroutines,
	}

	if limit := c.config.MaxHeapBytes; limit > 0 {
		ratio := float64(stats.HeapAlloc) / float64(limit)
		details["heap_usage_percent"] = ratio * 100
		switch {
		case ratio >= 1:
			return Unhealthy(fmt.Sprintf("heap usage critical: %.1f%%", ratio*100), ErrCheckFailed).WithDetails(details)
		case ratio >= 0.8:
			return Degraded(fmt.Sprintf("heap usage high: %.1f%%", ratio*100)).WithDetails(details)
		}
	}

	if limit := c.config.MaxGoroutines; limit > 0 && goroutines >= limit {
		return Degraded(fmt.Sprintf("%d goroutines", goroutines)).WithDetails(details)
	}

	return Healthy("runtime normal").WithDetails(details)
}
