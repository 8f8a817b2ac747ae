package hal

// Register identifies a 32-bit controller register by word index.
type Register uint8

// Controller registers, in register-file order.
const (
	RegSCR        Register = iota // Status and clock control
	RegARG                        // Command argument
	RegCMD                        // Command issue
	RegRSP0                       // Response word 0
	RegRSP1                       // Response word 1
	RegRSP2                       // Response word 2
	RegRSP3                       // Response word 3
	RegDAT                        // Data path control and status
	RegDMASCR                     // DMA control and status
	RegDMAAddress                 // DMA memory address
	RegDMALength                  // DMA length in bytes
	RegisterCount
)

// Offset returns the byte offset of the register within the register file.
func (r Register) Offset() uintptr {
	return uintptr(r) * 4
}

// String returns the register mnemonic.
func (r Register) String() string {
	switch r {
	case RegSCR:
		return "SCR"
	case RegARG:
		return "ARG"
	case RegCMD:
		return "CMD"
	case RegRSP0:
		return "RSP0"
	case RegRSP1:
		return "RSP1"
	case RegRSP2:
		return "RSP2"
	case RegRSP3:
		return "RSP3"
	case RegDAT:
		return "DAT"
	case RegDMASCR:
		return "DMA_SCR"
	case RegDMAAddress:
		return "DMA_ADDRESS"
	case RegDMALength:
		return "DMA_LENGTH"
	default:
		return "UNKNOWN"
	}
}

// ClockMode selects the SD bus clock.
type ClockMode uint8

// Bus clock modes.
const (
	ClockStop   ClockMode = 0
	Clock400kHz ClockMode = 1
	Clock25MHz  ClockMode = 2
	Clock50MHz  ClockMode = 3
)

// String returns a human-readable clock name.
func (m ClockMode) String() string {
	switch m {
	case ClockStop:
		return "stopped"
	case Clock400kHz:
		return "400 kHz"
	case Clock25MHz:
		return "25 MHz"
	case Clock50MHz:
		return "50 MHz"
	default:
		return "unknown"
	}
}

// SCR is the status and clock control register.
// Writes set the clock mode; the remaining bits are read-only status.
type SCR uint32

// SCR fields.
const (
	SCRClockModeMask SCR = 0x3
	SCRCmdBusy       SCR = 1 << 2 // Command in flight
	SCRCmdError      SCR = 1 << 3 // Last command failed (timeout, CRC, index)
	SCRCardBusy      SCR = 1 << 4 // DAT0 held low by the card
	SCRCardInserted  SCR = 1 << 5 // Card-detect switch closed
)

// SCRClock returns the SCR value selecting mode.
func SCRClock(mode ClockMode) SCR {
	return SCR(mode) & SCRClockModeMask
}

// ClockMode returns the currently selected bus clock.
func (s SCR) ClockMode() ClockMode { return ClockMode(s & SCRClockModeMask) }

// CmdBusy reports whether a command is in flight.
func (s SCR) CmdBusy() bool { return s&SCRCmdBusy != 0 }

// CmdError reports whether the last command failed.
func (s SCR) CmdError() bool { return s&SCRCmdError != 0 }

// CardBusy reports whether the card is signalling busy on DAT0.
func (s SCR) CardBusy() bool { return s&SCRCardBusy != 0 }

// CardInserted reports whether a card is in the slot.
func (s SCR) CardInserted() bool { return s&SCRCardInserted != 0 }

// CMD is the command issue register.
type CMD uint32

// CMD fields.
const (
	CMDIndexMask        CMD = 0x3F
	CMDSkipResponse     CMD = 1 << 6 // Do not wait for a response
	CMDReservedResponse CMD = 1 << 7 // Response index field is reserved (R2, R3)
	CMDLongResponse     CMD = 1 << 8 // 136-bit response
	CMDIgnoreCRC        CMD = 1 << 9 // Response carries no valid CRC (R3)
)

// NewCMD returns a CMD value issuing command index with no flags.
func NewCMD(index uint8) CMD {
	return CMD(index) & CMDIndexMask
}

// Index returns the command index.
func (c CMD) Index() uint8 { return uint8(c & CMDIndexMask) }

// SkipResponse reports whether the controller skips the response phase.
func (c CMD) SkipResponse() bool { return c&CMDSkipResponse != 0 }

// ReservedResponse reports whether the response index field is not checked.
func (c CMD) ReservedResponse() bool { return c&CMDReservedResponse != 0 }

// LongResponse reports whether a 136-bit response is expected.
func (c CMD) LongResponse() bool { return c&CMDLongResponse != 0 }

// IgnoreCRC reports whether the response CRC is not checked.
func (c CMD) IgnoreCRC() bool { return c&CMDIgnoreCRC != 0 }

// DAT is the data path register.
type DAT uint32

// DAT fields.
const (
	DATFIFOFlush  DAT = 1 << 0
	DATStartWrite DAT = 1 << 1
	DATStartRead  DAT = 1 << 2
	DATStop       DAT = 1 << 3
	DATBlocksBit      = 4
	DATBlocksMask DAT = 0xFF << DATBlocksBit // Block count minus one
	DATError      DAT = 1 << 30
	DATBusy       DAT = 1 << 31
)

// MaxBlocks is the largest block count a single data transfer can encode.
const MaxBlocks = 256

// DATBlocks encodes a block count (1 to [MaxBlocks]) into the DAT block field.
func DATBlocks(count uint32) DAT {
	return (DAT(count-1) << DATBlocksBit) & DATBlocksMask
}

// Blocks returns the decoded block count.
func (d DAT) Blocks() uint32 { return uint32((d&DATBlocksMask)>>DATBlocksBit) + 1 }

// FIFOFlush reports whether the FIFO flush bit is set.
func (d DAT) FIFOFlush() bool { return d&DATFIFOFlush != 0 }

// StartRead reports whether a card-to-host transfer is being started.
func (d DAT) StartRead() bool { return d&DATStartRead != 0 }

// StartWrite reports whether a host-to-card transfer is being started.
func (d DAT) StartWrite() bool { return d&DATStartWrite != 0 }

// Stop reports whether the data path is being stopped.
func (d DAT) Stop() bool { return d&DATStop != 0 }

// Busy reports whether the data path is active.
func (d DAT) Busy() bool { return d&DATBusy != 0 }

// Error reports whether the data path detected an error (CRC, FIFO).
func (d DAT) Error() bool { return d&DATError != 0 }

// DMASCR is the DMA control and status register.
type DMASCR uint32

// DMA_SCR fields.
const (
	DMAStart     DMASCR = 1 << 0
	DMAStop      DMASCR = 1 << 1
	DMADirection DMASCR = 1 << 2 // Set: card to memory
	DMABusy      DMASCR = 1 << 3
)

// Start reports whether the DMA engine is being started.
func (d DMASCR) Start() bool { return d&DMAStart != 0 }

// Stop reports whether the DMA engine is being stopped.
func (d DMASCR) Stop() bool { return d&DMAStop != 0 }

// ToMemory reports whether the DMA engine moves data from the card to memory.
func (d DMASCR) ToMemory() bool { return d&DMADirection != 0 }

// Busy reports whether the DMA engine is active.
func (d DMASCR) Busy() bool { return d&DMABusy != 0 }
