package uio

import "github.com/ardnew/softsd/card/hal"

// =============================================================================
// System Paths
// =============================================================================

// SysfsUIOPath is the base path for UIO devices in sysfs.
const SysfsUIOPath = "/sys/class/uio"

// DevfsPath is the directory holding UIO device nodes.
const DevfsPath = "/dev"

// =============================================================================
// Map Layout
// =============================================================================

// Default UIO map indices.
const (
	RegisterMap = 0 // Controller register file
	MemoryMap   = 1 // Cartridge memory window
)

// RegisterFileSize is the number of bytes of register file the driver uses.
const RegisterFileSize = int(hal.RegisterCount) * 4
