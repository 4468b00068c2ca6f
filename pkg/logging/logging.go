// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel converts a level name into a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewLogger returns a logger that writes to w. JSON output is used for
// long-running server mode, text output for interactive CLI usage.
func NewLogger(w io.Writer, name, version string, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(
		slog.String("module", name),
		slog.String("version", version),
	)
}

// SetDefaultStructuredLogger installs a JSON logger on stderr as the slog default.
func SetDefaultStructuredLogger(name, version string) {
	slog.SetDefault(NewLogger(os.Stderr, name, version, levelFromEnv(slog.LevelInfo), true))
}

// SetDefaultCLILogger installs a text logger on stderr as the slog default.
// debug forces the debug level regardless of LOG_LEVEL.
func SetDefaultCLILogger(name, version string, debug bool) {
	level := levelFromEnv(slog.LevelWarn)
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(NewLogger(os.Stderr, name, version, level, false))
}

func levelFromEnv(def slog.Level) slog.Level {
	if v := os.Getenv(EnvLogLevel); v != "" {
		return ParseLevel(v)
	}
	return def
}
