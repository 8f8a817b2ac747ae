// Package hal defines the hardware boundary of the SD card driver.
//
// The driver in package card implements the whole SD protocol: power-up
// negotiation, command sequencing, data transfers and recovery. What it needs
// from the platform is small and is captured by two interfaces:
//
//   - [Bus]: read and write the controller's register file, and read back
//     cartridge memory that the DMA engine filled
//   - [Timer]: a one-shot countdown whose expiry callback sets the driver's
//     timeout flag
//
// # Register Layout
//
// Each register is exposed as a typed bitfield ([SCR], [CMD], [DAT],
// [DMASCR]) with named accessors, so every protocol step can be traced to
// the bits it drives:
//
//	SCR      1:0 clock mode   2 CMD busy   3 CMD error   4 card busy   5 card inserted
//	CMD      5:0 index        6 skip rsp   7 reserved    8 long rsp    9 ignore CRC
//	DAT      0 FIFO flush     1 start wr   2 start rd    3 stop        11:4 blocks-1
//	         30 error         31 busy
//	DMA_SCR  0 start          1 stop       2 to memory   3 busy
//
// # Implementations
//
// A deterministic simulator for tests and development is available in
// [github.com/ardnew/softsd/card/hal/sim]. A Linux UIO backend that maps the
// controller into the process is available in
// [github.com/ardnew/softsd/card/hal/uio]; pair it with [SoftTimer].
package hal
