// Package log configures the process wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
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

// Setup installs a text logger on stderr as the default logger and returns it.
func Setup(logLevel string) *slog.Logger {
	return SetupWriter(os.Stderr, logLevel, "text")
}

// SetupWriter installs a logger writing to w. Format is "json" or "text".
func SetupWriter(w io.Writer, logLevel, format string) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLevel(logLevel)}

	var handler slog.Handler = slog.NewTextHandler(w, options)
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, options)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
