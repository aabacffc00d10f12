// Package logging provides the levelled logger used by the engine and CLI.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level enumerates severity tiers.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("logging: unknown level %q", s)
}

// Options configure a Logger.
type Options struct {
	// Level is the minimum level written
	Level Level

	// Quiet suppresses everything below ERROR
	Quiet bool

	// Output defaults to os.Stderr
	Output io.Writer

	// File, if set, receives a copy of every line
	File string
}

// output is shared between a logger and the loggers derived from it.
type output struct {
	mu    sync.Mutex
	inner *log.Logger
	file  *os.File
}

// Logger is a concurrency-safe, levelled logger. Lines look like
//
//	[INFO] 2024-05-01 10:00:00.000 engine: message
type Logger struct {
	out       *output
	level     Level
	quiet     bool
	component string
}

// New creates a logger. A log file that cannot be opened is reported on the
// primary output and skipped.
func New(opts Options) *Logger {
	primary := opts.Output
	if primary == nil {
		primary = os.Stderr
	}
	writers := []io.Writer{primary}

	var f *os.File
	if opts.File != "" {
		var err error
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			writers = append(writers, f)
		} else {
			fmt.Fprintf(primary, "[WARN] could not open log file %s: %v\n", opts.File, err)
		}
	}

	return &Logger{
		out:   &output{inner: log.New(io.MultiWriter(writers...), "", 0), file: f},
		level: opts.Level,
		quiet: opts.Quiet,
	}
}

// Discard returns a logger that writes nothing.
func Discard() *Logger {
	return New(Options{Output: io.Discard, Level: ERROR + 1})
}

// With returns a logger for a named component sharing this logger's output.
func (l *Logger) With(component string) *Logger {
	child := *l
	if l.component != "" {
		component = l.component + "/" + component
	}
	child.component = component
	return &child
}

// Enabled reports whether lines at lvl are written.
func (l *Logger) Enabled(lvl Level) bool {
	if l == nil {
		return false
	}
	if l.quiet && lvl < ERROR {
		return false
	}
	return lvl >= l.level
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.file != nil {
		err := l.out.file.Close()
		l.out.file = nil
		return err
	}
	return nil
}

func (l *Logger) log(lvl Level, format string, args ...any) {
	if !l.Enabled(lvl) {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	prefix := ""
	if l.component != "" {
		prefix = l.component + ": "
	}

	l.out.mu.Lock()
	l.out.inner.Printf("[%s] %s %s%s", lvl, ts, prefix, msg)
	l.out.mu.Unlock()
}

func (l *Logger) Debug(f string, a ...any) { l.log(DEBUG, f, a...) }
func (l *Logger) Info(f string, a ...any)  { l.log(INFO, f, a...) }
func (l *Logger) Warn(f string, a ...any)  { l.log(WARN, f, a...) }
func (l *Logger) Error(f string, a ...any) { l.log(ERROR, f, a...) }
