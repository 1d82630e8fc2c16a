// Package pkg provides shared utilities for the softhpi adapter stack.
//
// This package contains common functionality used by the adapter layer,
// the transport backends and the hardware abstraction layer, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Rotating log files for long-running hosts
//   - Sentinel errors and the structured [Error] type
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with HPI-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentAdapter, "adapter booted", "index", 0)
//
// Logs can be redirected to a size-rotated file:
//
//	pkg.SetLogOutput(pkg.NewRotatingWriter(pkg.RotateConfig{Path: "hpi.log", MaxSizeMB: 10}))
//	pkg.SetLogFormat(pkg.LogFormatJSON)
//
// # Errors
//
// Failures surfaced by backends carry their category, phase and step:
//
//	var e *pkg.Error
//	if errors.As(err, &e) && e.Category == pkg.CategoryTransport {
//	    // Hardware unreachable
//	}
//
// Each [Error] wraps a sentinel, so [errors.Is] works as well:
//
//	if errors.Is(err, pkg.ErrTimeout) {
//	    // A bounded wait expired
//	}
package pkg
