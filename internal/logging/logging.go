// Package logging builds the process logger. Diagnostics go to stderr so
// stdout stays parseable; a log file can be added for long-running watch
// sessions.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	logDirPerms  = 0o750
	logFilePerms = 0o600
)

// Options configures New.
type Options struct {
	// Verbose enables debug-level output.
	Verbose bool

	// Quiet drops everything below warning.
	Quiet bool

	// FilePath, when set, appends JSON records to the given file instead
	// of writing text to stderr.
	FilePath string
}

// New returns the logger and a close function for any opened file. The
// close function is never nil.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo

	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}

	if opts.FilePath == "" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

		return slog.New(handler), func() error { return nil }, nil
	}

	err := os.MkdirAll(filepath.Dir(opts.FilePath), logDirPerms)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerms)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})

	return slog.New(handler), file.Close, nil
}

// Discard returns a logger that drops everything. For tests and for
// callers that have not set up logging yet.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
