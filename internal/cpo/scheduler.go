package cpo

import (
	"sync"
	"time"
)

// timerState is the lifecycle of one flush timer.
type timerState int

const (
	timerIdle timerState = iota
	timerArmed
	timerFiring
)

func (s timerState) String() string {
	switch s {
	case timerIdle:
		return "idle"
	case timerArmed:
		return "armed"
	case timerFiring:
		return "firing"
	default:
		return "unknown"
	}
}

// flushTimer schedules flush cycles on demand. It stays idle until work
// is enqueued, fires once after the configured interval, and re-arms only
// when new work arrived while the flush was running. There is no periodic
// tick while the queue is empty.
type flushTimer struct {
	interval time.Duration
	fire     func()

	mu      sync.Mutex
	state   timerState
	pending bool
	timer   *time.Timer
	stopped bool
}

func newFlushTimer(interval time.Duration, fire func()) *flushTimer {
	return &flushTimer{interval: interval, fire: fire}
}

// notify signals that new work was enqueued. Idle -> Armed; while firing
// the work is remembered so the timer re-arms after the flush completes.
func (t *flushTimer) notify() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	switch t.state {
	case timerIdle:
		t.state = timerArmed
		t.timer = time.AfterFunc(t.interval, t.onFire)
	case timerFiring:
		t.pending = true
	case timerArmed:
		// Already due, nothing to do.
	}
}

func (t *flushTimer) onFire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.state = timerFiring
	t.mu.Unlock()

	t.fire()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		t.state = timerIdle
		return
	}
	if t.pending {
		t.pending = false
		t.state = timerArmed
		t.timer = time.AfterFunc(t.interval, t.onFire)
		return
	}
	t.state = timerIdle
}

// currentState reports the timer lifecycle state.
func (t *flushTimer) currentState() timerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// stop disables the timer permanently. A flush already in progress is
// allowed to finish; it will not re-arm.
func (t *flushTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.state == timerArmed {
		t.state = timerIdle
	}
}
