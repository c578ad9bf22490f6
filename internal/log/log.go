// Package log provides the minimal structured logger used across the
// cache package. It keeps every call site free of a concrete logging
// backend so callers embedding the library can redirect, filter, or
// silence diagnostics without touching parser or serializer code.
package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

// Severity levels, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the sink every log entry is eventually written to.
type Logger interface {
	Log(level Level, msg string) error
}

// stdLogger writes timestamped, leveled lines to an io.Writer.
type stdLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdLogger builds a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "%s %-5s %s\n", time.Now().Format(time.RFC3339), level, msg)
	return err
}

// filterLogger drops entries below a minimum level.
type filterLogger struct {
	next Logger
	min  Level
}

// FilterOption configures a filtering Logger.
type FilterOption func(*filterLogger)

// FilterLevel sets the minimum level that passes through the filter.
func FilterLevel(level Level) FilterOption {
	return func(f *filterLogger) {
		f.min = level
	}
}

// NewFilter wraps logger so only entries at or above the configured
// level reach it.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &filterLogger{next: logger, min: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filterLogger) Log(level Level, msg string) error {
	if level < f.min {
		return nil
	}
	return f.next.Log(level, msg)
}

// Helper adds formatting convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger with Debugf/Infof/Warnf/Errorf helpers.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

// Debugf logs a formatted message at debug level.
func (h *Helper) Debugf(format string, args ...interface{}) {
	_ = h.logger.Log(LevelDebug, fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at info level.
func (h *Helper) Infof(format string, args ...interface{}) {
	_ = h.logger.Log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func (h *Helper) Warnf(format string, args ...interface{}) {
	_ = h.logger.Log(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func (h *Helper) Errorf(format string, args ...interface{}) {
	_ = h.logger.Log(LevelError, fmt.Sprintf(format, args...))
}
