package card

import "github.com/ardnew/softsd/card/hal"

// setClock switches the bus clock. The clock is always stopped first so
// the controller never glitches between two running rates.
func (d *Driver) setClock(mode hal.ClockMode) {
	d.bus.WriteReg(hal.RegSCR, uint32(hal.SCRClock(hal.ClockStop)))
	if mode != hal.ClockStop {
		d.bus.WriteReg(hal.RegSCR, uint32(hal.SCRClock(mode)))
	}
	d.session.clock = mode
}
