// Package logging configures the structured loggers shared by every kernel
// module.
package logging

import (
	"log/slog"
	"os"
)

// New builds a text-handler slog.Logger scoped to a single module ("kernel",
// "memoria", "cpu", "io"), the way utils.InicializarLogger did,
// but returns the logger instead of stashing it in package globals so each
// binary owns its own instance.
func New(level string, module string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("module", module)
}

// ParseLevel maps the config file's log_level string onto a slog.Level,
// defaulting to Info on anything unrecognized.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
