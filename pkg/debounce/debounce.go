// Package debounce collapses bursts of change notifications into a single
// call carrying every identifier seen during the burst.
package debounce

import (
	"sort"
	"sync"
	"time"
)

// Action Receives one batch of changed identifiers
type Action func(batch []string)

// Trigger Collects identifiers and fires Action once the quiescence
// window has passed without a new change.
type Trigger struct {
	delay  time.Duration
	action Action

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	gen     uint64
	stopped bool

	// run keeps actions from overlapping. Waiters are not served in order.
	run sync.Mutex
}

// New Creates a trigger with the given quiescence window.
// A zero delay fires on the next timer tick after the last change.
func New(delay time.Duration, action Action) *Trigger {
	if delay < 0 {
		delay = 0
	}
	return &Trigger{
		delay:   delay,
		action:  action,
		pending: make(map[string]struct{}),
	}
}

// Changed Records id and restarts the quiescence window
func (t *Trigger) Changed(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	t.pending[id] = struct{}{}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	var gen uint64 = t.gen
	t.timer = time.AfterFunc(t.delay, func() { t.fire(gen) })
}

// Pending Number of identifiers waiting for the next batch
func (t *Trigger) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop Cancels any scheduled batch and waits for a running action to
// return. Further changes are ignored.
func (t *Trigger) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	t.run.Lock()
	t.run.Unlock()
}

func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	// timers replaced or stopped after expiring still run this callback
	if t.gen != gen || t.stopped {
		t.mu.Unlock()
		return
	}

	batch := make([]string, 0, len(t.pending))
	for id := range t.pending {
		batch = append(batch, id)
	}
	t.pending = make(map[string]struct{})
	t.timer = nil
	t.mu.Unlock()

	if len(batch) == 0 || t.action == nil {
		return
	}
	sort.Strings(batch)

	t.run.Lock()
	defer t.run.Unlock()
	t.mu.Lock()
	var stopped bool = t.stopped
	t.mu.Unlock()
	if stopped {
		return
	}
	t.action(batch)
}
