// Package sim implements a simulated SD host controller and SD memory card.
//
// This HAL is primarily intended for testing and development. A [Controller]
// implements both [hal.Bus] and [hal.Timer], so a driver can run its whole
// bring-up and read sequence without hardware:
//
//	ctrl := sim.New()
//	ctrl.Insert(sim.NewCard(sim.CardOptions{HighCapacity: true, HighSpeed: true}))
//	drv := card.New(ctrl, ctrl)
//
// # Virtual Time
//
// Time in the simulator advances by a fixed tick on every register read and
// at no other moment. A countdown started through [Controller.Start] expires
// on the read that crosses its deadline, and its callback runs after the
// controller lock is released, as an interrupt handler would. A driver
// polling a status register therefore times out after a predictable number
// of reads, independent of host speed and scheduling.
//
// # Card Model
//
// A [Card] follows the SD protocol state machine (idle, ready, ident, stby,
// tran, data) closely enough to reject out-of-order commands. Its behavior is
// set by [CardOptions]: capacity, high-capacity addressing, version 1.x
// (no SEND_IF_COND), high-speed support and several fault modes.
//
// # Fault Injection
//
// The controller can fail any command by index ([Controller.FailCommand],
// [Controller.FailAppCommand]), stall data transfers ([Controller.StallData])
// or complete them with the error bit set ([Controller.DataFault]). Every
// command and transfer is recorded for inspection ([Controller.Commands],
// [Controller.Transfers], [Controller.Clocks]).
//
// # Cartridge Memory
//
// DMA writes land in a sparse memory exposed through [Controller.ReadMem]
// and [Controller.WriteMem]. Unwritten memory reads as zero.
package sim
