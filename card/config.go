package card

import (
	"time"

	"github.com/ardnew/softsd/pkg"
)

// Config holds driver tunables. The zero value is not usable; start from
// [DefaultConfig].
type Config struct {
	// ScratchAddress is the cartridge memory address that receives the
	// SWITCH_FUNC status block (one block) during initialization.
	ScratchAddress uint32

	// OCRTimeout bounds the SD_SEND_OP_COND power-up poll.
	OCRTimeout time.Duration

	// TransferTimeout bounds each data transfer chunk.
	TransferTimeout time.Duration

	// HighSpeed permits switching a capable card to 50 MHz timing.
	HighSpeed bool
}

// DefaultConfig returns the configuration used by the cartridge firmware.
func DefaultConfig() Config {
	return Config{
		ScratchAddress:  DefaultScratchAddress,
		OCRTimeout:      1000 * time.Millisecond,
		TransferTimeout: 1000 * time.Millisecond,
		HighSpeed:       true,
	}
}

// Validate reports whether the configuration can drive a card.
func (c *Config) Validate() error {
	if c.OCRTimeout <= 0 || c.TransferTimeout <= 0 {
		return pkg.ErrInvalidParameter
	}
	if c.ScratchAddress%4 != 0 {
		return pkg.ErrInvalidParameter
	}
	return nil
}
