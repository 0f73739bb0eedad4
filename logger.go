package main

import (
	"io"
	"log/slog"
)

// NewLogger returns a JSON slog.Logger writing to w. Debug enables debug
// records and source locations.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("app", "templateplay")
}
