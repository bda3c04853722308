package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// newLogger writes JSON lines when w is not a terminal, which is what
// CloudWatch receives under Lambda, and human-readable text otherwise.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts))
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
