package resilience

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// PeriodicTask runs a function on a fixed period until stopped.
//
// The task is owned by whatever component created it; that component is
// responsible for calling Stop when it shuts down.
type PeriodicTask struct {
	clock  clockwork.Clock
	period time.Duration
	fn     func()

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPeriodicTask creates a task that calls fn every period.
// A nil clock uses the real clock. The task does not run until Start is called.
func NewPeriodicTask(clock clockwork.Clock, period time.Duration, fn func()) *PeriodicTask {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PeriodicTask{
		clock:  clock,
		period: period,
		fn:     fn,
	}
}

// Start launches the task. Calling Start on a running task is a no-op.
func (t *PeriodicTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopCh != nil || t.period <= 0 || t.fn == nil {
		return
	}

	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.run(t.stopCh, t.doneCh)
}

// Stop halts the task and waits for an in-progress run to finish.
// Stop is idempotent.
func (t *PeriodicTask) Stop() {
	t.mu.Lock()
	stopCh, doneCh := t.stopCh, t.doneCh
	t.stopCh, t.doneCh = nil, nil
	t.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

// Running reports whether the task has been started and not stopped.
func (t *PeriodicTask) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCh != nil
}

func (t *PeriodicTask) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := t.clock.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			t.fn()
		}
	}
}
