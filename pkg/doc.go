// Package pkg provides shared utilities for the softsd SD card driver.
//
// This package contains functionality used by the driver, its hardware
// abstraction layers, and the simulator:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for SD bus, transfer, and session failures
//   - Component identifiers for log filtering
//
// # Logging
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentInit, "card ready", "rca", rca)
//
// # Errors
//
// Errors are sentinel values wrapped with context by the caller:
//
//	if errors.Is(err, pkg.ErrTimeout) {
//	    // The card stopped answering within the deadline
//	}
package pkg
