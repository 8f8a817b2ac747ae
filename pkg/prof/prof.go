//go:build profile

package prof

import (
	"errors"
	"io"
	"os"
	"runtime/pprof"
	"sync"
)

// Profiling errors.
var (
	// ErrCPUProfileActive indicates CPU profiling is already active.
	ErrCPUProfileActive = errors.New("cpu profile already active")

	// ErrInvalidProfile indicates an invalid or unsupported profile type.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile represents a pprof profile type.
type Profile string

// Profile types.
const (
	ProfileCPU       Profile = "cpu"
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
)

// String returns the profile name.
func (p Profile) String() string {
	return string(p)
}

var cpu struct {
	mutex  sync.Mutex
	file   *os.File
	active bool
}

// StartCPU starts CPU profiling into the file at path.
func StartCPU(path string) error {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	if cpu.active {
		return ErrCPUProfileActive
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	cpu.file = f
	cpu.active = true
	return nil
}

// StopCPU stops CPU profiling and closes the profile file. It is safe to
// call when profiling is not active.
func StopCPU() {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()

	if !cpu.active {
		return
	}
	pprof.StopCPUProfile()
	cpu.file.Close()
	cpu.file = nil
	cpu.active = false
}

// IsCPUActive reports whether CPU profiling is active.
func IsCPUActive() bool {
	cpu.mutex.Lock()
	defer cpu.mutex.Unlock()
	return cpu.active
}

// Write writes a snapshot profile to the file at path.
func Write(profile Profile, path string) error {
	if profile == ProfileCPU {
		return ErrInvalidProfile
	}
	p := pprof.Lookup(string(profile))
	if p == nil {
		return ErrInvalidProfile
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteTo(f, 0)
}

// WriteTo writes a snapshot profile to w in binary protobuf format.
func WriteTo(profile Profile, w io.Writer) error {
	if profile == ProfileCPU {
		return ErrInvalidProfile
	}
	p := pprof.Lookup(string(profile))
	if p == nil {
		return ErrInvalidProfile
	}
	return p.WriteTo(w, 0)
}
