//go:build linux

package uio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// =============================================================================
// UIO Map Information
// =============================================================================

// uioMap describes one memory map exported by a UIO device.
type uioMap struct {
	index  int
	name   string // Optional map name
	addr   uint64 // Physical address
	size   uint64 // Length in bytes
	offset uint64 // Offset of the region within its first page
}

// =============================================================================
// Sysfs Parsing
// =============================================================================

// scanMaps reads the memory maps of the UIO device at devicePath
// (for example /sys/class/uio/uio0).
func scanMaps(devicePath string) ([]uioMap, error) {
	mapsPath := filepath.Join(devicePath, "maps")
	entries, err := os.ReadDir(mapsPath)
	if err != nil {
		return nil, err
	}

	var maps []uioMap

	for _, entry := range entries {
		name := entry.Name()

		// Map entries are named map0, map1, ...
		if !strings.HasPrefix(name, "map") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(name, "map"))
		if err != nil {
			continue
		}

		m, err := parseMap(filepath.Join(mapsPath, name))
		if err != nil {
			continue // Skip maps we can't parse
		}
		m.index = index
		maps = append(maps, m)
	}

	return maps, nil
}

// parseMap parses one map directory.
func parseMap(mapPath string) (uioMap, error) {
	var m uioMap

	addr, err := readSysfsHex(filepath.Join(mapPath, "addr"), 64)
	if err != nil {
		return m, err
	}
	m.addr = addr

	size, err := readSysfsHex(filepath.Join(mapPath, "size"), 64)
	if err != nil {
		return m, err
	}
	m.size = size

	// Older kernels do not export offset or name
	if offset, err := readSysfsHex(filepath.Join(mapPath, "offset"), 64); err == nil {
		m.offset = offset
	}
	if name, err := readSysfsString(filepath.Join(mapPath, "name")); err == nil {
		m.name = name
	}

	return m, nil
}

// findMap returns the map with the given index.
func findMap(maps []uioMap, index int) (uioMap, error) {
	for _, m := range maps {
		if m.index == index {
			return m, nil
		}
	}
	return uioMap{}, fmt.Errorf("map%d: %w", index, os.ErrNotExist)
}

// =============================================================================
// Sysfs Read Helpers
// =============================================================================

// readSysfsString reads a string from a sysfs attribute file.
func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readSysfsHex reads a hexadecimal value from a sysfs attribute file.
func readSysfsHex(path string, bitSize int) (uint64, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	// Remove any "0x" prefix
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, bitSize)
}
