package hal

import "time"

// Bus defines the register-level interface to the SD controller.
//
// The bus exposes the controller's register file, the DMA engine that moves
// block data between the card and cartridge memory, and a window onto that
// memory for reading back small payloads such as the SWITCH_FUNC status
// block. The driver owns all protocol sequencing; the bus only moves words.
//
// Implementations are driven from a single goroutine at a time. The driver
// serializes every access behind its own lock.
type Bus interface {
	// ReadReg returns the current value of a controller register.
	ReadReg(r Register) uint32

	// WriteReg stores v into a controller register. Writing CMD issues a
	// command; writing DAT or DMA_SCR programs the data path.
	WriteReg(r Register, v uint32)

	// ReadMem copies len(buf) bytes of cartridge memory starting at address
	// into buf.
	ReadMem(address uint32, buf []byte)
}

// Timer is a one-shot countdown with an expiry callback.
//
// Start arms the countdown; when d elapses the timer calls expire exactly
// once, possibly from another goroutine or an interrupt context. Stop
// cancels a pending countdown. Calling Start while armed replaces the
// previous countdown.
type Timer interface {
	Start(d time.Duration, expire func())
	Stop()
}
