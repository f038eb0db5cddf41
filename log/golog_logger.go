package log

import (
	"github.com/kataras/golog"
)

// GologLogger adapts kataras/golog to Logger.
type GologLogger struct {
	logger *golog.Logger
	level  Level
	prefix string
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	return &GologLogger{logger: logger, level: LevelInfo}
}

// WithScope returns a GologLogger that prefixes every message with
// "[scope] ", sharing the wrapped golog.Logger and level gate. ChainGraph
// runs many concurrent executions and nodes through one process logger,
// unlike the single conversational agent this adapter originally served, so
// call sites scope a logger once per execution/node instead of splicing the
// id into every format string by hand.
func (l *GologLogger) WithScope(scope string) Logger {
	return &GologLogger{logger: l.logger, level: l.level, prefix: "[" + scope + "] "}
}

func (l *GologLogger) Debug(format string, v ...any) {
	if l.level <= LevelDebug {
		args := append([]any{l.prefix + format}, v...)
		l.logger.Debug(args...)
	}
}

func (l *GologLogger) Info(format string, v ...any) {
	if l.level <= LevelInfo {
		args := append([]any{l.prefix + format}, v...)
		l.logger.Info(args...)
	}
}

func (l *GologLogger) Warn(format string, v ...any) {
	if l.level <= LevelWarn {
		args := append([]any{l.prefix + format}, v...)
		l.logger.Warn(args...)
	}
}

func (l *GologLogger) Error(format string, v ...any) {
	if l.level <= LevelError {
		args := append([]any{l.prefix + format}, v...)
		l.logger.Error(args...)
	}
}

// SetLevel updates both the adapter's own gate and golog's internal level.
func (l *GologLogger) SetLevel(level Level) {
	l.level = level
	golevel := "info"
	switch level {
	case LevelDebug:
		golevel = "debug"
	case LevelWarn:
		golevel = "warn"
	case LevelError:
		golevel = "error"
	case LevelNone:
		golevel = "disable"
	}
	l.logger.SetLevel(golevel)
}

// GetLevel returns the adapter's current gating level.
func (l *GologLogger) GetLevel() Level { return l.level }
