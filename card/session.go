package card

import "github.com/ardnew/softsd/card/hal"

// State is the lifecycle state of a card session.
type State uint8

// Session states.
const (
	StateUninitialized State = 0 // No card session
	StateInitializing  State = 1 // Bring-up sequence in progress
	StateReady         State = 2 // Card selected and ready for sector I/O
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Addressing is how a card interprets data command addresses.
type Addressing uint8

// Addressing modes.
const (
	AddressingByte  Addressing = 0 // Standard capacity: byte offsets
	AddressingBlock Addressing = 1 // High capacity: block numbers
)

// String returns the addressing mode name.
func (a Addressing) String() string {
	switch a {
	case AddressingByte:
		return "byte"
	case AddressingBlock:
		return "block"
	default:
		return "unknown"
	}
}

// session is the per-card record kept by a Driver.
type session struct {
	state      State
	addressing Addressing

	// rca is the published relative card address in the upper half-word,
	// ready to be used as a command argument. Zero when no card is
	// selected.
	rca uint32

	clock     hal.ClockMode
	highSpeed bool
}

// reset returns the session to the state of a freshly created driver.
func (s *session) reset() {
	s.state = StateUninitialized
	s.addressing = AddressingByte
	s.rca = 0
	s.highSpeed = false
}

// active reports whether the session holds the card, whether or not the
// bring-up sequence has completed.
func (s *session) active() bool {
	return s.state != StateUninitialized
}

// sectorAddress converts a sector number into a data command argument.
func (s *session) sectorAddress(sector uint32) uint32 {
	if s.addressing == AddressingBlock {
		return sector
	}
	return sector * BlockSize
}

// sectorStride returns the argument increment for blocks sectors.
func (s *session) sectorStride(blocks uint32) uint32 {
	if s.addressing == AddressingBlock {
		return blocks
	}
	return blocks * BlockSize
}
