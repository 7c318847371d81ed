// Package clog provides the small structured-logging shim used across the
// clrvm packages. It mirrors the shape of the logger the PE parser expects
// (Helper wrapping a Logger, level-based filtering) without pulling in a
// full logging framework.
package clog

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Level is the severity of a log record.
type Level int8

// Log levels, lowest to highest severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
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
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal logging sink every component in this module writes
// through. A caller that wants structured logs (JSON, zap, whatever) only
// needs to implement Log.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes plain lines to an io.Writer via the standard library
// logger.
type stdLogger struct {
	mu  sync.Mutex
	log *log.Logger
}

// NewStdLogger returns a Logger backed by the standard library log package.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{log: log.New(w, "", log.LstdFlags)}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Println(append([]interface{}{level.String()}, keyvals...)...)
	return nil
}

// Filter wraps a Logger and drops records below a configured level.
type Filter struct {
	logger Logger
	level  Level
}

// Option configures a Filter.
type Option func(*Filter)

// FilterLevel sets the minimum level a record must reach to be emitted.
func FilterLevel(level Level) Option {
	return func(f *Filter) {
		f.level = level
	}
}

// NewFilter returns a Logger that only forwards records at or above the
// configured level.
func NewFilter(logger Logger, opts ...Option) Logger {
	f := &Filter{logger: logger, level: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper wraps a Logger with printf-style convenience methods.
type Helper struct {
	logger Logger
}

// NewHelper returns a Helper writing through logger.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, a ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, "msg", fmt.Sprintf(format, a...))
}

// Debugf logs at debug level.
func (h *Helper) Debugf(format string, a ...interface{}) { h.log(LevelDebug, format, a...) }

// Infof logs at info level.
func (h *Helper) Infof(format string, a ...interface{}) { h.log(LevelInfo, format, a...) }

// Warn logs a plain message at warn level.
func (h *Helper) Warn(msg string) { h.log(LevelWarn, "%s", msg) }

// Warnf logs at warn level.
func (h *Helper) Warnf(format string, a ...interface{}) { h.log(LevelWarn, format, a...) }

// Errorf logs at error level.
func (h *Helper) Errorf(format string, a ...interface{}) { h.log(LevelError, format, a...) }
