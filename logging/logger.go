package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide JSON logger.
func NewLogger(logLevel string) *slog.Logger {
	return New(os.Stdout, logLevel)
}

// New writes JSON records to w. Source positions are always attached.
func New(w io.Writer, logLevel string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(logLevel),
		AddSource: true,
	})
	return slog.New(handler)
}

// ParseLevel maps a LOG_LEVEL value onto slog levels. Unknown values fall
// back to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(logLevel)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
