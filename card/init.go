package card

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// initialize brings up the card in the slot.
//
// The sequence is linear: reset, interface condition, power-up poll,
// identification, selection, bus width, and the optional high-speed switch.
// Any failing step closes the session before returning, so the caller sees
// either a ready card or none at all.
func (d *Driver) initialize() error {
	if d.session.active() {
		return pkg.ErrAlreadyInitialized
	}

	d.setState(StateInitializing)
	d.session.rca = 0

	if err := d.bringUp(); err != nil {
		d.deinit()
		pkg.LogWarn(pkg.ComponentInit, "card initialization failed", "err", err)
		return err
	}

	d.setState(StateReady)
	pkg.LogInfo(pkg.ComponentInit, "card ready",
		"addressing", d.session.addressing.String(),
		"rca", fmt.Sprintf("%#04x", d.session.rca>>16),
		"clock", d.session.clock.String())
	return nil
}

// bringUp runs the bring-up steps. It leaves cleanup to initialize.
func (d *Driver) bringUp() error {
	var rsp Response

	d.setClock(hal.Clock400kHz)

	// The card answers nothing to GO_IDLE_STATE.
	_ = d.dispatch(CmdGoIdleState, 0, ResponseNone, nil)

	arg := uint32(argOCR)
	if err := d.dispatch(CmdSendIfCond, argIfCond, ResponseR7, &rsp); err != nil {
		pkg.LogDebug(pkg.ComponentInit, "no interface condition, assuming version 1.x card")
	} else {
		if echo := rsp.Uint32(); echo != r7Echo {
			return fmt.Errorf("SEND_IF_COND echo %#x: %w", echo, pkg.ErrInterfaceCondition)
		}
		arg |= argHCS
	}

	if err := d.powerUp(arg); err != nil {
		return err
	}

	if err := d.dispatch(CmdAllSendCID, 0, ResponseR2, nil); err != nil {
		return fmt.Errorf("ALL_SEND_CID: %w", err)
	}

	if err := d.dispatch(CmdSendRelativeAddr, 0, ResponseR6, &rsp); err != nil {
		return fmt.Errorf("SEND_RELATIVE_ADDR: %w", err)
	}
	d.session.rca = rsp.Uint32() & r6RCAMask

	if err := d.dispatch(CmdSelectCard, d.session.rca, ResponseR1b, nil); err != nil {
		return fmt.Errorf("SELECT_CARD: %w", err)
	}

	d.setClock(hal.Clock25MHz)

	if err := d.dispatchApp(AppCmdSetBusWidth, argBusWidth4Bit, ResponseR1, nil); err != nil {
		return fmt.Errorf("SET_BUS_WIDTH: %w", err)
	}

	status, err := d.switchFunction(argSwitchCheckHighSpeed)
	if err != nil {
		return fmt.Errorf("SWITCH_FUNC check: %w", err)
	}
	if !d.config.HighSpeed || binary.BigEndian.Uint16(status[:])&switchHighSpeed == 0 {
		return nil
	}

	// The switch is trusted on the command and transfer outcome alone.
	if _, err := d.switchFunction(argSwitchSetHighSpeed); err != nil {
		return fmt.Errorf("SWITCH_FUNC set: %w", err)
	}
	d.setClock(hal.Clock50MHz)
	d.session.highSpeed = true
	return nil
}

// powerUp polls SD_SEND_OP_COND until the card leaves power-up and records
// its addressing mode.
func (d *Driver) powerUp(arg uint32) error {
	var rsp Response

	d.timeout.arm(d.config.OCRTimeout)
	defer d.timeout.disarm()

	for {
		if d.timeout.expired() {
			return fmt.Errorf("SD_SEND_OP_COND: %w", pkg.ErrTimeout)
		}
		if err := d.dispatchApp(AppCmdSDSendOpCond, arg, ResponseR3, &rsp); err != nil {
			return fmt.Errorf("SD_SEND_OP_COND: %w", err)
		}
		ocr := rsp.Uint32()
		if ocr&r3Busy == 0 {
			continue
		}
		if ocr&r3OCR == 0 {
			return fmt.Errorf("SD_SEND_OP_COND OCR %#08x: %w", ocr, pkg.ErrVoltageRange)
		}
		d.session.addressing = AddressingByte
		if ocr&r3CCS != 0 {
			d.session.addressing = AddressingBlock
		}
		return nil
	}
}

// switchFunction runs one SWITCH_FUNC exchange and returns the group 1
// support bits of the status block.
func (d *Driver) switchFunction(arg uint32) ([2]byte, error) {
	var support [2]byte

	d.beginTransfer(transfer{
		address:   d.config.ScratchAddress,
		blocks:    1,
		direction: DirectionRead,
	})
	if err := d.dispatch(CmdSwitchFunc, arg, ResponseR1, nil); err != nil {
		d.abortTransfer()
		return support, err
	}
	if err := d.waitTransfer(d.config.TransferTimeout); err != nil {
		return support, err
	}

	d.bus.ReadMem(d.config.ScratchAddress+switchGroup1Support, support[:])
	return support, nil
}

// deinit closes the session. The card is sent back to idle at the slow
// clock and the clock is stopped. It is a no-op without a session.
func (d *Driver) deinit() {
	if !d.session.active() {
		return
	}
	d.setClock(hal.Clock400kHz)
	_ = d.dispatch(CmdGoIdleState, 0, ResponseNone, nil)
	d.setClock(hal.ClockStop)

	d.setState(StateUninitialized)
	d.session.reset()
	pkg.LogDebug(pkg.ComponentCard, "card session closed")
}
