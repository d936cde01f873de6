// Package debounce coalesces bursts of calls into a single deferred call.
//
// A [Task] holds at most one pending function. Scheduling again cancels the
// pending one and restarts the quiet period, so the newest function always
// wins.
package debounce

import (
	"sync"
	"time"
)

// Task runs the most recently scheduled function once the delay has passed
// without a new schedule. The zero value is not usable; call [New].
type Task struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	fn    func()
	gen   uint64
}

// New returns a task with the given quiet period.
func New(delay time.Duration) *Task {
	return &Task{delay: delay}
}

// Schedule replaces any pending function with fn and restarts the delay.
func (t *Task) Schedule(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.fn = fn
	t.timer = time.AfterFunc(t.delay, func() { t.fire(gen) })
}

// fire runs fn if no newer schedule or cancel happened since gen.
func (t *Task) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.fn == nil {
		t.mu.Unlock()
		return
	}
	fn := t.fn
	t.fn = nil
	t.timer = nil
	t.mu.Unlock()
	fn()
}

// Cancel drops the pending function. It reports whether one was pending.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending := t.fn != nil
	t.gen++
	t.fn = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return pending
}

// Flush runs the pending function immediately on the calling goroutine. It
// reports whether anything ran.
func (t *Task) Flush() bool {
	t.mu.Lock()
	fn := t.fn
	t.gen++
	t.fn = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
