package hal

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSoftTimerExpires(t *testing.T) {
	timer := NewSoftTimer()
	done := make(chan struct{})

	timer.Start(5*time.Millisecond, func() { close(done) })
	if !timer.Armed() {
		t.Error("Armed() = false after Start")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not expire")
	}
	if timer.Armed() {
		t.Error("Armed() = true after expiry")
	}
}

func TestSoftTimerStop(t *testing.T) {
	timer := NewSoftTimer()
	var fired atomic.Bool

	timer.Start(10*time.Millisecond, func() { fired.Store(true) })
	timer.Stop()
	time.Sleep(30 * time.Millisecond)

	if fired.Load() {
		t.Error("stopped timer fired")
	}
	if timer.Armed() {
		t.Error("Armed() = true after Stop")
	}

	// Stop on a disarmed timer is a no-op.
	timer.Stop()
}

func TestSoftTimerRestart(t *testing.T) {
	timer := NewSoftTimer()
	var first, second atomic.Int32
	done := make(chan struct{})

	timer.Start(time.Hour, func() { first.Add(1) })
	timer.Start(5*time.Millisecond, func() {
		second.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("restarted timer did not expire")
	}
	timer.Stop()

	if first.Load() != 0 {
		t.Error("replaced countdown fired")
	}
	if second.Load() != 1 {
		t.Errorf("second countdown fired %d times, want 1", second.Load())
	}
}
