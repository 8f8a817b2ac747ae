//go:build linux

package uio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softsd/card/hal"
	"github.com/ardnew/softsd/pkg"
)

// Options describes where the register file and the memory window sit in
// the mmap space of the device node.
type Options struct {
	// RegisterOffset is the page-aligned mmap offset of the register file
	// mapping. RegisterStart is the byte at which the register file begins
	// within that mapping, and RegisterSize its length.
	RegisterOffset int64
	RegisterStart  int
	RegisterSize   int

	// MemoryOffset, MemoryStart and MemorySize locate the memory window the
	// same way. A zero MemorySize maps no window; ReadMem then reads zeros.
	MemoryOffset int64
	MemoryStart  int
	MemorySize   int

	// MemoryBase is the cartridge address of the first window byte.
	MemoryBase uint32
}

// Validate reports whether the layout can back a [hal.Bus].
func (o *Options) Validate() error {
	if o.RegisterSize < RegisterFileSize {
		return fmt.Errorf("register window %d bytes, need %d: %w",
			o.RegisterSize, RegisterFileSize, pkg.ErrInvalidParameter)
	}
	if o.RegisterStart < 0 || o.RegisterStart%4 != 0 {
		return fmt.Errorf("register start %d unaligned: %w", o.RegisterStart, pkg.ErrInvalidParameter)
	}
	if o.MemoryStart < 0 || o.MemorySize < 0 {
		return fmt.Errorf("negative memory window: %w", pkg.ErrInvalidParameter)
	}
	page := int64(os.Getpagesize())
	if o.RegisterOffset%page != 0 || o.MemoryOffset%page != 0 {
		return fmt.Errorf("mmap offsets must be page aligned: %w", pkg.ErrInvalidParameter)
	}
	return nil
}

// Device is a controller mapped through a UIO device node.
//
// Register accesses are single aligned 32-bit loads and stores. A Device is
// used by one driver at a time; Close must not race with other methods.
type Device struct {
	path string
	fd   int

	regMap []byte // Whole register mapping
	regs   []byte // Register file within regMap

	memMap  []byte
	mem     []byte
	memBase uint32
}

var _ hal.Bus = (*Device)(nil)

// Open maps the UIO device with the given name (for example "uio0") using
// the layout it advertises in sysfs.
func Open(name string) (*Device, error) {
	maps, err := scanMaps(filepath.Join(SysfsUIOPath, name))
	if err != nil {
		return nil, fmt.Errorf("scan %s maps: %w", name, err)
	}
	regs, err := findMap(maps, RegisterMap)
	if err != nil {
		return nil, fmt.Errorf("%s register file: %w", name, err)
	}
	mem, err := findMap(maps, MemoryMap)
	if err != nil {
		return nil, fmt.Errorf("%s memory window: %w", name, err)
	}

	// UIO selects map N with mmap offset N pages.
	page := int64(os.Getpagesize())
	return OpenFile(filepath.Join(DevfsPath, name), Options{
		RegisterOffset: RegisterMap * page,
		RegisterStart:  int(regs.offset),
		RegisterSize:   int(regs.size),
		MemoryOffset:   MemoryMap * page,
		MemoryStart:    int(mem.offset),
		MemorySize:     int(mem.size),
		MemoryBase:     uint32(mem.addr + mem.offset),
	})
}

// OpenFile maps the file at path with an explicit layout.
func OpenFile(path string, opts Options) (*Device, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	d := &Device{path: path, fd: fd, memBase: opts.MemoryBase}

	d.regMap, err = unix.Mmap(fd, opts.RegisterOffset, opts.RegisterStart+opts.RegisterSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to map %s registers: %w", path, err)
	}
	d.regs = d.regMap[opts.RegisterStart:]

	if opts.MemorySize > 0 {
		d.memMap, err = unix.Mmap(fd, opts.MemoryOffset, opts.MemoryStart+opts.MemorySize,
			unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to map %s memory: %w", path, err)
		}
		d.mem = d.memMap[opts.MemoryStart:]
	}

	pkg.LogInfo(pkg.ComponentHAL, "UIO device mapped",
		"path", path,
		"registers", len(d.regs),
		"memory", len(d.mem),
		"base", fmt.Sprintf("%#08x", d.memBase))
	return d, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// word returns the register's location in the mapping.
func (d *Device) word(r hal.Register) *uint32 {
	return (*uint32)(unsafe.Pointer(&d.regs[r.Offset()]))
}

// ReadReg implements [hal.Bus].
func (d *Device) ReadReg(r hal.Register) uint32 {
	if r >= hal.RegisterCount {
		return 0
	}
	return atomic.LoadUint32(d.word(r))
}

// WriteReg implements [hal.Bus].
func (d *Device) WriteReg(r hal.Register, v uint32) {
	if r >= hal.RegisterCount {
		return
	}
	atomic.StoreUint32(d.word(r), v)
}

// ReadMem implements [hal.Bus]. Bytes outside the memory window read as
// zero.
func (d *Device) ReadMem(address uint32, buf []byte) {
	clear(buf)

	off := int64(address) - int64(d.memBase)
	if off < 0 || off >= int64(len(d.mem)) {
		pkg.LogWarn(pkg.ComponentHAL, "memory read outside window",
			"address", fmt.Sprintf("%#08x", address),
			"length", len(buf))
		return
	}
	copy(buf, d.mem[off:])
}

// Close unmaps the windows and closes the device node. It is safe to call
// more than once.
func (d *Device) Close() error {
	var errs []error
	if d.memMap != nil {
		errs = append(errs, unix.Munmap(d.memMap))
		d.memMap, d.mem = nil, nil
	}
	if d.regMap != nil {
		errs = append(errs, unix.Munmap(d.regMap))
		d.regMap, d.regs = nil, nil
	}
	if d.fd >= 0 {
		errs = append(errs, unix.Close(d.fd))
		d.fd = -1
	}
	return errors.Join(errs...)
}
