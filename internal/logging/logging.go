// Package logging installs the process-wide slog handler.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON handler on stdout as the default logger, tagged with
// service, and returns it.
func Setup(service, level string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger := slog.New(h).With(slog.String("service", service))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug, info, warn and error; anything else is info.
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
