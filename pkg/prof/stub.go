//go:build !profile

package prof

import "io"

// Profiling errors (defined for API compatibility but never returned by stubs).
var (
	ErrCPUProfileActive error
	ErrInvalidProfile   error
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

// StartCPU is a no-op when built without the "profile" tag.
func StartCPU(_ string) error { return nil }

// StopCPU is a no-op when built without the "profile" tag.
func StopCPU() {}

// IsCPUActive always returns false when built without the "profile" tag.
func IsCPUActive() bool { return false }

// Write is a no-op when built without the "profile" tag.
func Write(_ Profile, _ string) error { return nil }

// WriteTo is a no-op when built without the "profile" tag.
func WriteTo(_ Profile, _ io.Writer) error { return nil }
