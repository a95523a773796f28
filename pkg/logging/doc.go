// Package logging provides structured logging utilities shared by the node
// and coordinator services.
//
// # Overview
//
// This package wraps the standard library slog package with astacus-specific
// defaults and conventions for consistent logging, plus optional Sentry
// crash reporting. It supports environment-based log level configuration,
// module/version context injection, and automatic source location tracking
// for debug logs.
//
// # Features
//
//   - Structured JSON logging to stderr
//   - Environment-based log level configuration (LOG_LEVEL)
//   - Automatic module and version context
//   - Source location tracking for debug logs
//   - Sentry error reporting via InitSentry/CaptureError
//
// # Log Levels
//
// Supported log levels (case-insensitive):
//   - DEBUG: Detailed diagnostic information with source location
//   - INFO: General informational messages (default)
//   - WARN/WARNING: Warning messages for potentially problematic situations
//   - ERROR: Error messages for failures requiring attention
//
// # Usage
//
// Setting the default logger (recommended):
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("astacus-node", version.Version)
//
//	    slog.Info("processing request", "id", "req-123")
//	    slog.Debug("detailed state", "data", complexObject)
//	    slog.Error("operation failed", "error", err)
//	}
//
// Creating a custom logger:
//
//	logger := logging.NewStructuredLogger("astacus-coordinator", "v2.0.0", "debug")
//	logger.Info("server starting", "port", 8080)
//
// Reporting an error to Sentry and the log:
//
//	logging.CaptureError(ctx, err, "upload failed", "node", nodeURL)
//
// # Environment Configuration
//
// The LOG_LEVEL environment variable controls logging verbosity. If unset,
// defaults to INFO level.
package logging
