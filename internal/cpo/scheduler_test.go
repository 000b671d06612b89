package cpo

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestFlushTimerStartsIdle(t *testing.T) {
	timer := newFlushTimer(time.Hour, func() {})
	assert.Equal(t, timerIdle, timer.currentState())
}

func TestFlushTimerArmsOnNotifyAndFires(t *testing.T) {
	var fired int32
	timer := newFlushTimer(20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	timer.notify()
	assert.Equal(t, timerArmed, timer.currentState())

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&fired) == 1 })
	waitFor(t, time.Second, func() bool { return timer.currentState() == timerIdle })
}

func TestFlushTimerSecondNotifyWhileArmedIsNoop(t *testing.T) {
	var fired int32
	timer := newFlushTimer(30*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	timer.notify()
	timer.notify()
	timer.notify()

	waitFor(t, time.Second, func() bool { return timer.currentState() == timerIdle })
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestFlushTimerRearmsWhenWorkArrivesDuringFire(t *testing.T) {
	var fired int32
	firing := make(chan struct{})
	release := make(chan struct{})

	timer := newFlushTimer(10*time.Millisecond, func() {
		if atomic.AddInt32(&fired, 1) == 1 {
			close(firing)
			<-release
		}
	})

	timer.notify()
	<-firing
	require.Equal(t, timerFiring, timer.currentState())

	// New work arrives while the flush is running.
	timer.notify()
	close(release)

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&fired) == 2 })
	waitFor(t, time.Second, func() bool { return timer.currentState() == timerIdle })
}

func TestFlushTimerReturnsToIdleWithoutNewWork(t *testing.T) {
	var fired int32
	timer := newFlushTimer(10*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	timer.notify()
	waitFor(t, time.Second, func() bool { return timer.currentState() == timerIdle })

	// Without another notify the timer must stay idle.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.Equal(t, timerIdle, timer.currentState())
}

func TestFlushTimerStop(t *testing.T) {
	var fired int32
	timer := newFlushTimer(20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	timer.notify()
	timer.stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.Equal(t, timerIdle, timer.currentState())

	// Notifications after stop are ignored.
	timer.notify()
	assert.Equal(t, timerIdle, timer.currentState())
}
