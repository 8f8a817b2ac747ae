package card

import (
	"errors"
	"sync"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// Driver owns one SD card slot.
//
// Every exported method holds the driver lock for its whole duration, so a
// Driver serves one operation at a time. Waits inside an operation busy-poll
// the controller; none of them yield to other work.
type Driver struct {
	bus     hal.Bus
	timeout timeout
	config  Config

	session session
	mutex   sync.Mutex

	// State transitions queued while locked, reported after unlock.
	events        []stateEvent
	onStateChange func(old, new State)
}

type stateEvent struct {
	old, new State
}

// New creates a driver for the controller on bus, using timer for every
// bounded wait, with [DefaultConfig].
func New(bus hal.Bus, timer hal.Timer) *Driver {
	d, _ := NewWithConfig(bus, timer, DefaultConfig())
	return d
}

// NewWithConfig creates a driver with an explicit configuration.
func NewWithConfig(bus hal.Bus, timer hal.Timer, config Config) (*Driver, error) {
	if bus == nil || timer == nil {
		return nil, pkg.ErrInvalidParameter
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		bus:     bus,
		timeout: timeout{timer: timer},
		config:  config,
	}, nil
}

// Init performs one-time setup: it forgets any card session and stops the
// bus clock. It does not talk to the card.
func (d *Driver) Init() {
	d.mutex.Lock()
	defer d.unlock()

	d.setState(StateUninitialized)
	d.session.reset()
	d.setClock(hal.ClockStop)
	pkg.LogDebug(pkg.ComponentCard, "driver initialized")
}

// CardInit runs the card bring-up sequence. Calling it while a session is
// already open does nothing and returns nil. On failure the session is
// closed before the error is returned.
func (d *Driver) CardInit() error {
	d.mutex.Lock()
	defer d.unlock()

	err := d.initialize()
	if errors.Is(err, pkg.ErrAlreadyInitialized) {
		pkg.LogDebug(pkg.ComponentInit, "card already initialized")
		return nil
	}
	return err
}

// CardDeinit closes the card session, putting the card back to idle and
// stopping the clock. It is a no-op without a session.
func (d *Driver) CardDeinit() {
	d.mutex.Lock()
	defer d.unlock()
	d.deinit()
}

// ReadSectors reads count sectors starting at sector into cartridge memory
// at address. It returns nil without touching the controller when count is
// zero or no card is ready; use [Driver.Initialized] to tell the two apart.
func (d *Driver) ReadSectors(address, sector, count uint32) error {
	d.mutex.Lock()
	defer d.unlock()
	return d.readSectors(address, sector, count)
}

// Process polls card presence and closes the session once the card has
// been pulled. Call it once per iteration of the firmware main loop.
func (d *Driver) Process() {
	d.mutex.Lock()
	defer d.unlock()
	d.pollPresence()
}

// State returns the session state.
func (d *Driver) State() State {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session.state
}

// Initialized reports whether a card is ready for sector I/O.
func (d *Driver) Initialized() bool {
	return d.State() == StateReady
}

// Addressing returns the addressing mode of the current card.
// It is meaningful only while [Driver.Initialized] is true.
func (d *Driver) Addressing() Addressing {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session.addressing
}

// RCA returns the relative card address (upper half-word), or zero when no
// card is selected.
func (d *Driver) RCA() uint32 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session.rca
}

// Clock returns the bus clock last selected by the driver.
func (d *Driver) Clock() hal.ClockMode {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session.clock
}

// HighSpeed reports whether the card was switched to high-speed timing.
func (d *Driver) HighSpeed() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session.highSpeed
}

// Config returns the driver configuration.
func (d *Driver) Config() Config {
	return d.config
}

// SetOnStateChange sets a callback for session state transitions.
// The callback runs after the driver lock is released and may call back
// into the driver.
func (d *Driver) SetOnStateChange(cb func(old, new State)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onStateChange = cb
}

// setState changes the session state and queues the transition.
// The caller holds the lock.
func (d *Driver) setState(state State) {
	old := d.session.state
	d.session.state = state
	if old == state {
		return
	}
	pkg.LogDebug(pkg.ComponentCard, "session state changed",
		"from", old.String(),
		"to", state.String())
	d.events = append(d.events, stateEvent{old: old, new: state})
}

// unlock releases the lock and reports queued transitions.
func (d *Driver) unlock() {
	events := d.events
	d.events = nil
	callback := d.onStateChange
	d.mutex.Unlock()

	if callback == nil {
		return
	}
	for _, e := range events {
		callback(e.old, e.new)
	}
}
