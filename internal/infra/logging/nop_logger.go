package logging

import (
	"io"
	"log/slog"
)

// NewNopLogger creates a logger that drops every record.
// Services fall back to it in tests and when output is "discard".
func NewNopLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelError + 1}))
}
