package card

import (
	"time"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// Direction is the direction of a block transfer.
type Direction uint8

// Transfer directions.
const (
	DirectionRead  Direction = iota // Card to memory
	DirectionWrite                  // Memory to card
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	default:
		return "unknown"
	}
}

// transfer describes one chunk moved by the DMA engine.
type transfer struct {
	address   uint32 // Cartridge memory address
	blocks    uint32 // 1 to hal.MaxBlocks
	direction Direction
}

// length returns the chunk size in bytes.
func (t transfer) length() uint32 {
	return t.blocks * BlockSize
}

// beginTransfer arms the data path and the DMA engine for t. The data
// command that feeds the transfer is issued afterward by the caller.
func (d *Driver) beginTransfer(t transfer) {
	dat := hal.DATBlocks(t.blocks) | hal.DATFIFOFlush
	dma := hal.DMAStart

	if t.direction == DirectionRead {
		dat |= hal.DATStartRead
		dma |= hal.DMADirection
	} else {
		dat |= hal.DATStartWrite
	}

	d.bus.WriteReg(hal.RegDAT, uint32(dat))
	d.bus.WriteReg(hal.RegDMAAddress, t.address)
	d.bus.WriteReg(hal.RegDMALength, t.length())
	d.bus.WriteReg(hal.RegDMASCR, uint32(dma))
}

// abortTransfer stops the DMA engine and the data path and flushes the FIFO.
func (d *Driver) abortTransfer() {
	d.bus.WriteReg(hal.RegDMASCR, uint32(hal.DMAStop))
	d.bus.WriteReg(hal.RegDAT, uint32(hal.DATStop|hal.DATFIFOFlush))
}

// waitTransfer polls the data path and DMA engine until both are idle or
// the deadline passes. On expiry the transfer is aborted.
func (d *Driver) waitTransfer(limit time.Duration) error {
	d.timeout.arm(limit)

	for {
		dat := hal.DAT(d.bus.ReadReg(hal.RegDAT))
		dma := hal.DMASCR(d.bus.ReadReg(hal.RegDMASCR))
		if !dat.Busy() && !dma.Busy() {
			d.timeout.disarm()
			status := pkg.TransferStatusSuccess
			if dat.Error() {
				status = pkg.TransferStatusBusFault
				pkg.LogDebug(pkg.ComponentTransfer, "data path error")
			}
			return status.Error()
		}
		if d.timeout.expired() {
			break
		}
	}

	d.abortTransfer()
	pkg.LogDebug(pkg.ComponentTransfer, "transfer timed out", "limit", limit)
	return pkg.TransferStatusTimeout.Error()
}
