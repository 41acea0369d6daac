// Package logging configures the structured logger used across promptsplit.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options configures Setup.
type Options struct {
	// Level is the minimum level written to Stderr.
	Level slog.Level
	// Stderr receives console logs; nil means os.Stderr.
	Stderr io.Writer
	// DebugFile, when set, receives every record at debug level instead of Stderr.
	DebugFile string
}

// ParseLevel converts debug, info, warn or error into a slog level.
// Unknown values yield warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// DebugLogPath returns the debug log location under dir.
func DebugLogPath(dir string) string {
	return filepath.Join(dir, ".promptsplit", "logs", "debug.log")
}

// Setup builds a text logger and installs it as the slog default.
// The returned close function releases the debug file, if one was opened.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	w := opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	level := opts.Level
	closeFn := func() error { return nil }

	if opts.DebugFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.DebugFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.DebugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		fmt.Fprintf(f, "=== promptsplit debug log started at %s ===\n", time.Now().Format(time.RFC3339))
		w = f
		level = slog.LevelDebug
		closeFn = f.Close
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
