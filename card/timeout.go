package card

import (
	"sync/atomic"
	"time"

	"github.com/ardnew/softsd/card/hal"
)

// timeout adapts a one-shot [hal.Timer] into the flag every wait loop polls.
//
// The flag has a single writer (the timer callback, which may run on another
// goroutine or in interrupt context) and a single reader (the polling loop).
type timeout struct {
	timer hal.Timer
	flag  atomic.Bool
}

// arm clears the flag and starts the countdown. Callers arm before entering
// any loop that checks expired.
func (t *timeout) arm(d time.Duration) {
	t.flag.Store(false)
	t.timer.Start(d, t.trigger)
}

func (t *timeout) trigger() {
	t.flag.Store(true)
}

// expired reports whether the countdown ran out.
func (t *timeout) expired() bool {
	return t.flag.Load()
}

// disarm stops the countdown and clears the flag, so a countdown abandoned
// on the success path cannot fire into a later wait.
func (t *timeout) disarm() {
	t.timer.Stop()
	t.flag.Store(false)
}
