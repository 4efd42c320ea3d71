// Package logging provides the leveled key=value logger used across the
// runner and a prefixing writer for child-process output.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// Level controls logging verbosity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger emits timestamped, leveled key=value lines for one component.
type Logger struct {
	logger    *log.Logger
	component string
	level     Level
}

// New returns a logger writing to w for the named component.
func New(w io.Writer, component string, level Level) *Logger {
	return &Logger{
		logger:    log.New(w, "", 0),
		component: component,
		level:     level,
	}
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	levelStr := "INFO"
	switch level {
	case LevelDebug:
		levelStr = "DEBUG"
	case LevelWarn:
		levelStr = "WARN"
	case LevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s %s %s: %s", time.Now().Format(time.RFC3339), levelStr, l.component, msg)
}

// PrefixWriter prefixes every line written through it, so interleaved
// child-process output stays attributable to its task. Safe for concurrent
// writers sharing the underlying writer via the shared mutex.
type PrefixWriter struct {
	mu     *sync.Mutex
	out    io.Writer
	prefix string
	buf    bytes.Buffer
}

// NewPrefixWriter returns a writer that prepends prefix to each line. All
// prefix writers targeting the same out must share mu.
func NewPrefixWriter(mu *sync.Mutex, out io.Writer, prefix string) *PrefixWriter {
	return &PrefixWriter{mu: mu, out: out, prefix: prefix}
}

// Write buffers partial lines and emits complete ones with the prefix.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line: keep it buffered until more bytes arrive.
			w.buf.WriteString(line)
			break
		}
		if _, err := fmt.Fprintf(w.out, "%s %s", w.prefix, line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush emits any buffered partial line, terminating it with a newline.
func (w *PrefixWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w.out, "%s %s\n", w.prefix, w.buf.String())
	w.buf.Reset()
	return err
}
