// Package logging holds the process-wide operational logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	opLogger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// Op returns the operational logger.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLevel changes the level of the operational logger.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// Level returns the current level of the operational logger.
func Level() slog.Level {
	return logLevel.Level()
}

// SetLevelFromString sets the log level from a string.
// Valid values: "debug", "info", "warn", "error". Anything else is ignored.
func SetLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	}
}

// InitStructured reconfigures the operational logger.
// format: "text" (default) or "json"
func InitStructured(format, level string) {
	InitStructuredTo(os.Stderr, format, level)
}

// InitStructuredTo is InitStructured with an explicit destination.
func InitStructuredTo(w io.Writer, format, level string) {
	SetLevelFromString(level)

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	opLogger.Store(slog.New(handler))
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
