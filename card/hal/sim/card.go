package sim

import (
	"encoding/binary"

	"github.com/ardnew/softsd/pkg"
)

// BlockSize is the size of one card block in bytes.
const BlockSize = 512

// DefaultBlocks is the capacity of a card created without an image or an
// explicit block count (1 GiB).
const DefaultBlocks = 1 << 21

// DefaultRCA is the relative card address published by CMD3.
const DefaultRCA = 0xB368

// SwitchStatusSize is the size of the SWITCH_FUNC status block.
const SwitchStatusSize = 64

// OCR and interface-condition fields as seen on the wire.
const (
	ocrVoltageWindow = 0x00FF8000
	ocrCCS           = 1 << 30
	ocrBusy          = 1 << 31
	ocrHCS           = 1 << 30
	ifCondMask       = 0x00000FFF
	r6StatusReady    = 0x0500 // READY_FOR_DATA | CURRENT_STATE=stby
)

// CardOptions describes the card model.
type CardOptions struct {
	// Blocks is the capacity in 512-byte blocks. Zero selects the image
	// length, or DefaultBlocks without an image.
	Blocks uint32

	// HighCapacity models an SDHC/SDXC card: CCS is reported when the host
	// advertises HCS, and data commands take block addresses.
	HighCapacity bool

	// Legacy models a version 1.x card that does not answer SEND_IF_COND.
	Legacy bool

	// HighSpeed models support for function group 1 function 1.
	HighSpeed bool

	// ReadyAfter is the number of SD_SEND_OP_COND polls answered with the
	// busy bit clear before power-up completes.
	ReadyAfter int

	// NeverReady keeps the card in power-up forever.
	NeverReady bool

	// BadEcho makes SEND_IF_COND return a corrupted check pattern.
	BadEcho bool

	// NoVoltage makes the card finish power-up with an empty voltage window.
	NoVoltage bool

	// RCA overrides DefaultRCA.
	RCA uint16

	// Image, if set, backs the card contents. Without it each block is
	// filled with its own block number, repeated as little-endian words.
	Image []byte
}

type cardState uint8

const (
	cardIdle cardState = iota
	cardReady
	cardIdent
	cardStandby
	cardTransfer
	cardData
)

func (s cardState) String() string {
	switch s {
	case cardIdle:
		return "idle"
	case cardReady:
		return "ready"
	case cardIdent:
		return "ident"
	case cardStandby:
		return "stby"
	case cardTransfer:
		return "tran"
	case cardData:
		return "data"
	default:
		return "unknown"
	}
}

// responseKind is what the card puts on the CMD line for a command.
type responseKind uint8

const (
	responseNone responseKind = iota
	responseShort
	responseLong
	responseOCR // short, no valid CRC
)

// reply is the card's answer to one command.
type reply struct {
	kind  responseKind
	words [4]uint32
	ok    bool

	// busy holds DAT0 low after the response (R1b).
	busy bool

	// data, when non-nil, produces the block payload for a pending read.
	data func(buf []byte) int

	// lba is the first block addressed by a data command.
	lba uint32
}

// Card is a simulated SD memory card.
type Card struct {
	opts CardOptions

	state    cardState
	rca      uint32
	appCmd   bool
	polls    int
	hcs      bool
	busWidth uint8
	setCount uint32

	// highSpeed is set once SWITCH_FUNC switched group 1 to function 1.
	highSpeed bool
}

// NewCard creates a card in the idle state.
func NewCard(opts CardOptions) *Card {
	if opts.Blocks == 0 {
		if len(opts.Image) > 0 {
			opts.Blocks = uint32(len(opts.Image) / BlockSize)
		} else {
			opts.Blocks = DefaultBlocks
		}
	}
	if opts.RCA == 0 {
		opts.RCA = DefaultRCA
	}
	return &Card{opts: opts, busWidth: 1}
}

// Blocks returns the card capacity in blocks.
func (c *Card) Blocks() uint32 { return c.opts.Blocks }

// HighSpeed reports whether the card switched to high-speed timing.
func (c *Card) HighSpeed() bool { return c.highSpeed }

// BusWidth returns the negotiated data bus width (1 or 4).
func (c *Card) BusWidth() uint8 { return c.busWidth }

// State returns the card protocol state name.
func (c *Card) State() string { return c.state.String() }

// reset returns the card to the idle state, as GO_IDLE_STATE does.
func (c *Card) reset() {
	c.state = cardIdle
	c.rca = 0
	c.appCmd = false
	c.polls = 0
	c.hcs = false
	c.busWidth = 1
	c.setCount = 0
	c.highSpeed = false
}

// expects returns the response kind the card produces for a command.
func expects(index uint8, app bool) responseKind {
	switch {
	case index == 0:
		return responseNone
	case index == 2:
		return responseLong
	case app && index == 41:
		return responseOCR
	default:
		return responseShort
	}
}

// execute runs one command against the card.
func (c *Card) execute(index uint8, arg uint32) (app bool, r reply) {
	app = c.appCmd
	c.appCmd = false

	if app {
		r = c.executeApp(index, arg)
	} else {
		r = c.executeStandard(index, arg)
	}
	r.kind = expects(index, app)
	return app, r
}

func (c *Card) executeStandard(index uint8, arg uint32) reply {
	switch index {
	case 0:
		c.reset()
		return reply{ok: true}

	case 2:
		if c.state != cardReady {
			return reply{}
		}
		c.state = cardIdent
		return reply{ok: true, words: [4]uint32{0x3C4C5A01, 0x00000000, 0x34303030, 0x03534453}}

	case 3:
		if c.state != cardIdent && c.state != cardStandby {
			return reply{}
		}
		c.state = cardStandby
		c.rca = uint32(c.opts.RCA) << 16
		return reply{ok: true, words: [4]uint32{c.rca | r6StatusReady}}

	case 6:
		if c.state != cardTransfer {
			return reply{}
		}
		return reply{ok: true, words: [4]uint32{c.status()}, data: c.switchFunction(arg)}

	case 7:
		switch {
		case arg == 0:
			if c.state == cardTransfer || c.state == cardData {
				c.state = cardStandby
			}
			return reply{ok: true}
		case arg&0xFFFF0000 != c.rca || c.state != cardStandby:
			return reply{}
		}
		c.state = cardTransfer
		return reply{ok: true, busy: true, words: [4]uint32{c.status()}}

	case 8:
		if c.opts.Legacy || c.state != cardIdle {
			return reply{}
		}
		echo := arg & ifCondMask
		if c.opts.BadEcho {
			echo ^= 0x55
		}
		return reply{ok: true, words: [4]uint32{echo}}

	case 12:
		if c.state != cardData && c.state != cardTransfer {
			return reply{}
		}
		c.state = cardTransfer
		return reply{ok: true, busy: true, words: [4]uint32{c.status()}}

	case 18:
		if c.state != cardTransfer {
			return reply{}
		}
		lba := arg
		if !c.opts.HighCapacity {
			if arg%BlockSize != 0 {
				return reply{}
			}
			lba = arg / BlockSize
		}
		count := c.setCount
		c.setCount = 0
		if count == 0 || uint64(lba)+uint64(count) > uint64(c.opts.Blocks) {
			return reply{}
		}
		c.state = cardData
		return reply{ok: true, words: [4]uint32{c.status()}, data: c.blockReader(lba, count), lba: lba}

	case 23:
		if c.state != cardTransfer || arg == 0 {
			return reply{}
		}
		c.setCount = arg
		return reply{ok: true, words: [4]uint32{c.status()}}

	case 55:
		if c.state >= cardStandby && arg&0xFFFF0000 != c.rca {
			return reply{}
		}
		c.appCmd = true
		return reply{ok: true, words: [4]uint32{c.status() | 1<<5}}
	}

	pkg.LogDebug(pkg.ComponentSim, "illegal command", "index", index, "state", c.state.String())
	return reply{}
}

func (c *Card) executeApp(index uint8, arg uint32) reply {
	switch index {
	case 6:
		if c.state != cardTransfer {
			return reply{}
		}
		switch arg & 0x3 {
		case 0:
			c.busWidth = 1
		case 2:
			c.busWidth = 4
		default:
			return reply{}
		}
		return reply{ok: true, words: [4]uint32{c.status()}}

	case 41:
		if c.state != cardIdle && c.state != cardReady {
			return reply{}
		}
		c.polls++
		c.hcs = arg&ocrHCS != 0
		if c.opts.NeverReady || c.polls <= c.opts.ReadyAfter {
			return reply{ok: true, words: [4]uint32{ocrVoltageWindow}}
		}
		// A high-capacity card never leaves power-up for a host that does
		// not advertise HCS.
		if c.opts.HighCapacity && !c.hcs {
			return reply{ok: true, words: [4]uint32{ocrVoltageWindow}}
		}
		ocr := uint32(ocrBusy)
		if !c.opts.NoVoltage {
			ocr |= ocrVoltageWindow
		}
		if c.opts.HighCapacity {
			ocr |= ocrCCS
		}
		c.state = cardReady
		return reply{ok: true, words: [4]uint32{ocr}}
	}

	pkg.LogDebug(pkg.ComponentSim, "illegal app command", "index", index, "state", c.state.String())
	return reply{}
}

// status returns an R1 card status word for the current state.
func (c *Card) status() uint32 {
	s := uint32(1 << 8) // READY_FOR_DATA
	switch c.state {
	case cardStandby:
		s |= 3 << 9
	case cardTransfer:
		s |= 4 << 9
	case cardData:
		s |= 5 << 9
	}
	return s
}

// switchFunction builds the SWITCH_FUNC status block and applies a switch.
func (c *Card) switchFunction(arg uint32) func(buf []byte) int {
	set := arg&(1<<31) != 0
	fn := arg & 0xF

	support := uint16(0x8001)
	if c.opts.HighSpeed {
		support |= 0x0002
	}

	result := byte(fn)
	switch {
	case fn == 0xF:
		result = 0
		if c.highSpeed {
			result = 1
		}
	case fn > 1 || (fn == 1 && !c.opts.HighSpeed):
		result = 0xF
	}
	if set && result == 1 {
		c.highSpeed = true
	}

	return func(buf []byte) int {
		var block [SwitchStatusSize]byte
		binary.BigEndian.PutUint16(block[0:], 100) // max current, mA
		for group := 0; group < 5; group++ {
			binary.BigEndian.PutUint16(block[2+group*2:], 0x8001)
		}
		binary.BigEndian.PutUint16(block[12:], support)
		block[16] = result & 0xF
		return copy(buf, block[:])
	}
}

// blockReader returns a payload producer for count blocks from lba.
func (c *Card) blockReader(lba, count uint32) func(buf []byte) int {
	return func(buf []byte) int {
		n := 0
		for i := uint32(0); i < count && n+BlockSize <= len(buf); i++ {
			c.readBlock(lba+i, buf[n:n+BlockSize])
			n += BlockSize
		}
		c.state = cardTransfer
		return n
	}
}

func (c *Card) readBlock(lba uint32, buf []byte) {
	if c.opts.Image != nil {
		off := uint64(lba) * BlockSize
		clear(buf)
		if off < uint64(len(c.opts.Image)) {
			copy(buf, c.opts.Image[off:])
		}
		return
	}
	for i := 0; i+4 <= len(buf); i += 4 {
		binary.LittleEndian.PutUint32(buf[i:], lba)
	}
}
