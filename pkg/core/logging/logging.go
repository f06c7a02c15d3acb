// Package logging sets up the process-wide structured logger.
//
// Output is logfmt (slog text handler) by default, or JSON when requested.
// Levels are given as strings (ERROR, WARNING, INFO, DEBUG) so they can come
// straight from the configuration file or a CLI flag.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewLogger creates a logfmt logger writing to stdout.
// Invalid levels default to INFO.
func NewLogger(level string) *slog.Logger {
	return New(os.Stdout, level, FormatText)
}

// New creates a logger writing to w in the given format. Unknown formats fall
// back to text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to slog.Level, case-insensitively.
// Returns slog.LevelInfo for invalid or empty levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR":
		return slog.LevelError
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "DEBUG":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level names a known level.
func ValidLevel(level string) bool {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ERROR", "WARNING", "WARN", "INFO", "DEBUG":
		return true
	}
	return false
}
