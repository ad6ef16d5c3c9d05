// Package logger holds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance. It discards everything until Init is
// called.
var Log = zerolog.Nop()

// Init configures Log to write human-readable output to stderr. Verbose
// enables debug level; otherwise only warnings and errors are shown, so
// regular command output stays uncluttered.
func Init(verbose, noColor bool) {
	InitWriter(os.Stderr, verbose, noColor)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, verbose, noColor bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	return Log.Debug()
}

// Warn starts a warning-level event.
func Warn() *zerolog.Event {
	return Log.Warn()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	return Log.Error()
}
