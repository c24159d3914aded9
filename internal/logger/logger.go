// Package logger configures the process-wide slog logger. Taskboard logs
// JSON with source locations; the level comes from the --log-level flag.
package logger

import (
	"log/slog"
	"os"
)

// Setup installs the global JSON logger.
func Setup(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps "debug", "warn", and "error" to their slog levels.
// Anything else, including the empty string, is info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
