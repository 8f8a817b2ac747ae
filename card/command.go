package card

import (
	"encoding/binary"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// ResponseKind is the response format a command expects.
type ResponseKind uint8

// Response kinds.
const (
	ResponseNone ResponseKind = iota // No response
	ResponseR1                       // Normal response
	ResponseR1b                      // Normal response, busy on DAT0
	ResponseR2                       // 136-bit CID/CSD
	ResponseR3                       // OCR, no CRC
	ResponseR6                       // Published RCA
	ResponseR7                       // Interface condition
)

// String returns the response kind name.
func (k ResponseKind) String() string {
	switch k {
	case ResponseNone:
		return "none"
	case ResponseR1:
		return "R1"
	case ResponseR1b:
		return "R1b"
	case ResponseR2:
		return "R2"
	case ResponseR3:
		return "R3"
	case ResponseR6:
		return "R6"
	case ResponseR7:
		return "R7"
	default:
		return "unknown"
	}
}

// Long reports whether the response is 136 bits.
func (k ResponseKind) Long() bool {
	return k == ResponseR2
}

// Size returns the number of response bytes delivered to the caller.
func (k ResponseKind) Size() int {
	switch k {
	case ResponseNone:
		return 0
	case ResponseR2:
		return 16
	default:
		return 4
	}
}

// flags returns the CMD register flags for the response kind.
func (k ResponseKind) flags() hal.CMD {
	switch k {
	case ResponseNone:
		return hal.CMDSkipResponse
	case ResponseR2:
		return hal.CMDLongResponse | hal.CMDReservedResponse
	case ResponseR3:
		return hal.CMDIgnoreCRC | hal.CMDReservedResponse
	default:
		return 0
	}
}

// Response holds the raw response words of one command, in little-endian
// byte order. Only the first [ResponseKind.Size] bytes are meaningful.
type Response [16]byte

// Uint32 returns the first response word (the 32-bit payload of every
// short response).
func (r *Response) Uint32() uint32 {
	return binary.LittleEndian.Uint32(r[0:4])
}

// Word returns response word i (0 to 3).
func (r *Response) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(r[i*4:])
}

// dispatch issues one command and waits for the controller to finish it.
//
// If rsp is non-nil and the command has a response, the response words are
// copied into rsp. Commands with an R1b response also wait for the card to
// release DAT0. The command-busy wait is unbounded: the controller times out
// a silent card on its own and reports it as a command error.
func (d *Driver) dispatch(index uint8, arg uint32, kind ResponseKind, rsp *Response) error {
	cmd := hal.NewCMD(index) | kind.flags()

	d.bus.WriteReg(hal.RegARG, arg)
	d.bus.WriteReg(hal.RegCMD, uint32(cmd))

	scr := hal.SCR(d.bus.ReadReg(hal.RegSCR))
	for scr.CmdBusy() {
		scr = hal.SCR(d.bus.ReadReg(hal.RegSCR))
	}

	if rsp != nil && kind != ResponseNone {
		words := 1
		if kind.Long() {
			words = 4
		}
		for i := 0; i < words; i++ {
			binary.LittleEndian.PutUint32(rsp[i*4:], d.bus.ReadReg(hal.RegRSP0+hal.Register(i)))
		}
	}

	if kind == ResponseR1b {
		scr = hal.SCR(d.bus.ReadReg(hal.RegSCR))
		for scr.CardBusy() {
			scr = hal.SCR(d.bus.ReadReg(hal.RegSCR))
		}
	}

	if scr.CmdError() {
		pkg.LogDebug(pkg.ComponentCommand, "command error",
			"index", index,
			"arg", arg,
			"response", kind.String())
		return pkg.ErrCommand
	}
	return nil
}

// dispatchApp issues APP_CMD addressed to the current card, then acmd.
// A failed APP_CMD is returned without issuing acmd.
func (d *Driver) dispatchApp(acmd uint8, arg uint32, kind ResponseKind, rsp *Response) error {
	if err := d.dispatch(CmdAppCmd, d.session.rca, ResponseR1, nil); err != nil {
		return err
	}
	return d.dispatch(acmd, arg, kind, rsp)
}
