// Package prof captures CPU and heap profiles of a driver session.
//
// The driver spends its time in busy-poll loops, so a CPU profile of a
// bring-up or a long sector read shows which wait dominates. This package
// wraps [runtime/pprof] behind a build tag:
//
//	go build -tags profile
//	go test -tags profile
//
// Without the "profile" tag every function is a no-op, so profiling hooks
// can stay in command-line tools at no cost.
//
// # CPU Profiling
//
//	if err := prof.StartCPU("cpu.prof"); err != nil {
//	    return err
//	}
//	defer prof.StopCPU()
//
// Starting a second CPU profile while one is active returns
// [ErrCPUProfileActive].
//
// # Snapshot Profiles
//
// [Write] captures a point-in-time profile, for example the heap after a
// read of many sectors:
//
//	prof.Write(prof.ProfileHeap, "heap.prof")
//
// [ProfileCPU] cannot be used with [Write]; it returns [ErrInvalidProfile].
package prof
