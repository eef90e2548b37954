package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates the process-wide JSON logger. Money-movement handlers log
// amounts and transaction ids on every hop, so the output stays
// machine-parseable. Unknown level names fall back to info.
func New(level string) *slog.Logger {
	return NewAt(os.Stdout, level)
}

// NewAt writes to the given sink, letting tests capture output.
func NewAt(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
