// Package uio provides an SD controller HAL for Linux using the userspace I/O
// (UIO) framework.
//
// The controller's register file and the cartridge memory window that its
// DMA engine fills are exported by a UIO kernel driver as two memory maps.
// This package discovers them in sysfs (/sys/class/uio/), maps them into the
// process through the device node (/dev/uioN) and exposes them as a
// [hal.Bus]. It is pure Go with no cgo dependencies.
//
// # Requirements
//
// The user running the application needs read/write access to the UIO
// device node. This typically requires either:
//   - Running as root
//   - A udev rule granting access to the user or group
//
// # Map Layout
//
// By default map 0 holds the register file and map 1 the memory window; the
// physical address of map 1 (from sysfs) is the cartridge address of its
// first byte. [Options] overrides the layout for devices that differ, or for
// a plain file standing in for the device.
//
// UIO has no countdown timer of its own; pair a [Device] with
// [hal.SoftTimer]:
//
//	dev, err := uio.Open("uio0")
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//	drv := card.New(dev, hal.NewSoftTimer())
package uio
