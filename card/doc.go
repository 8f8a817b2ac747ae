// Package card implements a pure-Go SD card driver for a memory-mapped SD
// host controller with a DMA engine.
//
// It is platform-agnostic and talks to hardware via the [hal.Bus] and
// [hal.Timer] interfaces defined in [github.com/ardnew/softsd/card/hal].
// The driver serves one card in one slot and exposes a small blocking API
// meant to be called from a firmware polling loop.
//
// # Architecture
//
// The driver is organized into a few layers:
//
//   - Command dispatch: encodes a command, waits for the controller and
//     collects the response (including the APP_CMD prefix)
//   - Data transfer: programs the data path and the DMA engine and waits
//     for completion under a deadline
//   - Initialization: the bring-up sequence from power-up to a selected
//     card at the fastest supported clock
//   - Sector I/O: multi-block reads split into transfer-sized chunks
//   - Presence: closes the session when the card is pulled
//
// # Session States
//
// A [Driver] keeps one card session:
//
//	Uninitialized → Initializing → Ready
//	      ↑______________|___________|
//
// Any failed bring-up step, [Driver.CardDeinit], or card removal detected by
// [Driver.Process] returns the session to Uninitialized with the relative
// card address cleared and the clock stopped.
//
// # Errors
//
// Operations return wrapped sentinels from [github.com/ardnew/softsd/pkg]:
// [pkg.ErrCommand], [pkg.ErrTimeout], [pkg.ErrBusFault],
// [pkg.ErrInterfaceCondition], [pkg.ErrVoltageRange] and, for sector reads,
// [pkg.ErrIO] wrapping the chunk failure. Test them with [errors.Is].
//
// # Example
//
//	drv := card.New(bus, hal.NewSoftTimer())
//	drv.Init()
//	for {
//	    drv.Process()
//	    if !drv.Initialized() {
//	        if err := drv.CardInit(); err != nil {
//	            continue
//	        }
//	    }
//	    if err := drv.ReadSectors(0x01000000, 0, 8); err != nil {
//	        log.Print(err)
//	    }
//	}
//
// A simulated controller and card for testing is available in
// [github.com/ardnew/softsd/card/hal/sim].
package card
