// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// sink is the destination shared by a logger and all of its named
// children, so their lines never interleave.
type sink struct {
	mu         sync.Mutex
	out        io.Writer
	timestamps bool
}

// Logger writes levelled diagnostics to stderr.  It is separate from
// the status log: the status log is what the operator asked to see,
// the Logger is how ursend explains itself.
type Logger struct {
	level LogLevel
	name  string
	sink  *sink
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).  Debug
// output is timestamped.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		sink:  &sink{out: os.Stderr, timestamps: verbosity >= int(LogDebug)},
	}
}

// Discard returns a Logger that drops everything, including errors.
func Discard() *Logger {
	return &Logger{level: LogQuiet, sink: &sink{out: io.Discard}}
}

// Named returns a child logger whose lines carry "name: " after the
// level tag.  Children share the parent's level and output.
func (l *Logger) Named(name string) *Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return &Logger{level: l.level, name: name, sink: l.sink}
}

// SetTimestamps enables or disables timestamp prefixes for l and every
// logger sharing its output.
func (l *Logger) SetTimestamps(on bool) {
	l.sink.mu.Lock()
	l.sink.timestamps = on
	l.sink.mu.Unlock()
}

// SetOutput redirects l and every logger sharing its output.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.out = w
	l.sink.mu.Unlock()
}

func (l *Logger) Level() LogLevel { return l.level }

// Enabled reports whether messages at lvl would be written.
func (l *Logger) Enabled(lvl LogLevel) bool { return l.level >= lvl }

func (l *Logger) Info(format string, args ...any) {
	if l.Enabled(LogNormal) {
		l.emit("INF", format, args)
	}
}

func (l *Logger) Warn(format string, args ...any) {
	if l.Enabled(LogNormal) {
		l.emit("WRN", format, args)
	}
}

func (l *Logger) Verbose(format string, args ...any) {
	if l.Enabled(LogVerbose) {
		l.emit("VRB", format, args)
	}
}

func (l *Logger) Debug(format string, args ...any) {
	if l.Enabled(LogDebug) {
		l.emit("DBG", format, args)
	}
}

// Error is written at every verbosity, quiet included.
func (l *Logger) Error(format string, args ...any) {
	l.emit("ERR", format, args)
}

func (l *Logger) emit(tag, format string, args []any) {
	line := fmt.Sprintf(format, args...)
	if l.name != "" {
		line = l.name + ": " + line
	}

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timestamps {
		fmt.Fprintf(s.out, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), tag, line)
		return
	}
	fmt.Fprintf(s.out, "[%s] %s\n", tag, line)
}
