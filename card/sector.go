package card

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// readSectors reads count sectors in chunks of at most [hal.MaxBlocks]
// blocks. A failed chunk aborts the whole read; the session is left as is.
func (d *Driver) readSectors(address, sector, count uint32) error {
	if count == 0 || d.session.state != StateReady {
		return nil
	}

	arg := d.session.sectorAddress(sector)
	for count > 0 {
		blocks := min(count, uint32(hal.MaxBlocks))

		if err := d.readChunk(address, arg, blocks); err != nil {
			pkg.LogWarn(pkg.ComponentTransfer, "sector read failed",
				"sector", sector,
				"blocks", blocks,
				"err", err)
			return fmt.Errorf("%w: sector %d (%d blocks): %w", pkg.ErrIO, sector, blocks, err)
		}

		address += blocks * BlockSize
		arg += d.session.sectorStride(blocks)
		sector += blocks
		count -= blocks
	}
	return nil
}

// readChunk moves blocks blocks starting at card address arg into memory.
func (d *Driver) readChunk(address, arg, blocks uint32) error {
	if pkg.LogEnabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentTransfer, "reading chunk",
			"address", fmt.Sprintf("%#08x", address),
			"arg", arg,
			"blocks", blocks)
	}

	d.beginTransfer(transfer{
		address:   address,
		blocks:    blocks,
		direction: DirectionRead,
	})

	if err := d.dispatch(CmdSetBlockCount, blocks, ResponseR1, nil); err != nil {
		d.abortTransfer()
		return fmt.Errorf("SET_BLOCK_COUNT: %w", err)
	}
	if err := d.dispatch(CmdReadMultipleBlock, arg, ResponseR1, nil); err != nil {
		d.abortTransfer()
		return fmt.Errorf("READ_MULTIPLE_BLOCK: %w", err)
	}

	err := d.waitTransfer(d.config.TransferTimeout)
	if errors.Is(err, pkg.ErrTimeout) {
		// Return the card to the transfer state; the chunk is not retried.
		_ = d.dispatch(CmdStopTransmission, 0, ResponseR1b, nil)
	}
	return err
}
