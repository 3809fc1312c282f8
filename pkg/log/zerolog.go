package log

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/tabsynth/pkg/errors"
)

// ZerologLogger adapts zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

var _ Logger = (*ZerologLogger)(nil)

// NewZerologLogger creates a JSON logger writing to w at the given minimum level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologLogger{zl: zl}
}

// NewConsoleLogger creates a human readable zerolog logger, used by the examples.
func NewConsoleLogger(level Level) *ZerologLogger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologLogger{zl: zl}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// InstallWarningHook routes errors.Warn through this logger with the
// warning's structured fields.
func (l *ZerologLogger) InstallWarningHook() {
	errors.SetZerologWarnFunc(func(w error) {
		ev := l.zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(w.Error())
	})
}

func (l *ZerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Err(err)
			fields = fields[1:]
		}
	}
	ev.Fields(normalizeFields(fields)).Msg(msg)
}

// normalizeFields drops a trailing key without value and stringifies keys.
func normalizeFields(fields []any) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, fields[i+1])
	}
	return out
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

var (
	globalMu       sync.RWMutex
	globalLogger   Logger = NewZerologLogger(os.Stderr, LevelWarn)
	globalProvider LoggerProvider
)

// GetLogger returns the process-wide logger used when a transformer is not
// given one explicitly.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// SetLoggerProvider installs p as the source of component loggers returned
// by GetLoggerWithName. nil falls back to the process-wide logger.
func SetLoggerProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// GetLoggerWithName returns the logger for a named component.
func GetLoggerWithName(name string) Logger {
	globalMu.RLock()
	p, l := globalProvider, globalLogger
	globalMu.RUnlock()
	if p != nil {
		return p.GetLoggerWithName(name)
	}
	return l.With(ComponentKey, name)
}
