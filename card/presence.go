package card

import (
	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// pollPresence closes the session when the card-inserted bit is clear.
func (d *Driver) pollPresence() {
	scr := hal.SCR(d.bus.ReadReg(hal.RegSCR))
	if scr.CardInserted() {
		return
	}
	if d.session.active() {
		pkg.LogInfo(pkg.ComponentCard, "card removed")
	}
	d.deinit()
}
