// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package logging

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
)

// NewStructuredLogger builds a JSON slog.Logger writing to stderr, tagged
// with the given module name and version on every record. level is parsed
// case-insensitively ("debug", "info", "warn"/"warning", "error"); an
// unrecognized value falls back to info.
func NewStructuredLogger(module, version, level string) *slog.Logger {
	lvl := parseLevel(level)
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})
	return slog.New(handler).With("module", module, "version", version)
}

// SetDefaultStructuredLogger installs a JSON structured logger as the slog
// default, with the level taken from the LOG_LEVEL environment variable
// (info if unset).
func SetDefaultStructuredLogger(module, version string) {
	SetDefaultStructuredLoggerWithLevel(module, version, os.Getenv("LOG_LEVEL"))
}

// SetDefaultStructuredLoggerWithLevel installs a JSON structured logger as
// the slog default with an explicit level, ignoring LOG_LEVEL.
func SetDefaultStructuredLoggerWithLevel(module, version, level string) {
	slog.SetDefault(NewStructuredLogger(module, version, level))
}

// NewLogLogger adapts slog's default logger to the standard library's
// *log.Logger, for dependencies that still take one (e.g. http.Server's
// ErrorLog). includeSource controls whether slog source attribution is
// attached to forwarded records.
func NewLogLogger(level slog.Level, includeSource bool) *log.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: includeSource,
	})
	return slog.NewLogLogger(handler, level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitSentry configures the Sentry SDK for crash and error reporting. An
// empty dsn disables Sentry entirely (sentry.Init is a no-op client in that
// case, and CaptureException calls silently drop). release and environment
// tag every captured event.
func InitSentry(dsn, release, environment string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// CaptureError reports err to Sentry (a no-op if Sentry was not
// initialized with a DSN) and logs it at error level with the supplied
// context fields.
func CaptureError(ctx context.Context, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
	slog.ErrorContext(ctx, msg, append(args, "error", err)...)
}
