// Package logging provides structured logging for the rctpower tools.
//
// This package wraps the zap logger with convenience functions for common
// logging patterns used throughout the project. Logging is silent by default
// so the CLI's own output stays clean; set RCTPOWER_LOG_LEVEL to enable it.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: per-byte protocol detail (frame hex dumps, transaction events)
//   - Info: normal operations (connections opened and closed)
//   - Warn: non-fatal issues (checksum mismatches, bootloader detection)
//   - Error: fatal issues (startup failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("connection established",
//	    zap.String("addr", "192.168.1.50:8899"),
//	)
//
// # Domain Helpers
//
// LogFrame and LogTransaction cover the two recurring protocol events:
//
//	logging.LogFrame("sent", escapedRequest)
//	logging.LogTransaction(id, result.String(), value)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
