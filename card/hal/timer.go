package hal

import (
	"sync"
	"time"
)

// SoftTimer implements [Timer] on the Go runtime timer.
// It stands in for a hardware countdown on hosts that have none, such as a
// Linux process driving the controller through UIO.
type SoftTimer struct {
	mutex sync.Mutex
	timer *time.Timer

	// gen invalidates callbacks from countdowns replaced by Start or Stop
	// after the runtime already queued them.
	gen uint64
}

// NewSoftTimer creates a disarmed software timer.
func NewSoftTimer() *SoftTimer {
	return &SoftTimer{}
}

// Start arms the countdown, replacing any pending one.
func (t *SoftTimer) Start(d time.Duration, expire func()) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.mutex.Lock()
		live := t.gen == gen
		if live {
			t.timer = nil
		}
		t.mutex.Unlock()
		if live {
			expire()
		}
	})
}

// Stop cancels a pending countdown. It is safe to call when disarmed.
func (t *SoftTimer) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// Armed reports whether a countdown is pending.
func (t *SoftTimer) Armed() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.timer != nil
}
