// Package logging provides structured logging for the xcoder driver.
package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level   LogLevel
	Format  string // "text" (console) or "json"; default "text"
	Output  io.Writer
	Sync    bool // flush after every line; useful for tests capturing a buffer
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger wraps a zap.SugaredLogger with session/device-scoped helpers.
type Logger struct {
	sugar *zap.SugaredLogger
	sync  bool
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// NewLogger creates a new logger from the given configuration.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	format := config.Format
	if format == "" {
		format = "text"
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if !config.NoColor && format == "text" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), config.Level.zapLevel())
	l := zap.New(core)
	return &Logger{sugar: l.Sugar(), sync: config.Sync}
}

// Default returns the process default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the process default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{sugar: l.sugar.With(args...), sync: l.sync}
}

// WithSession scopes subsequent log lines to a session id / device type.
func (l *Logger) WithSession(sessionID uint16, deviceType string) *Logger {
	return l.with("session_id", sessionID, "device_type", deviceType)
}

// WithDevice scopes subsequent log lines to a block device path.
func (l *Logger) WithDevice(path string) *Logger {
	return l.with("device", path)
}

// WithOp scopes subsequent log lines to an LBA operation (op name, LBA value).
func (l *Logger) WithOp(op string, lbaAddr uint32) *Logger {
	return l.with("op", op, "lba", lbaAddr)
}

// WithError attaches an error to subsequent log lines.
func (l *Logger) WithError(err error) *Logger {
	return l.with("error", err)
}

func (l *Logger) maybeSync() {
	if l.sync {
		_ = l.sugar.Sync()
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
	l.maybeSync()
}

func (l *Logger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
	l.maybeSync()
}

func (l *Logger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
	l.maybeSync()
}

func (l *Logger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
	l.maybeSync()
}

// Debugf/Infof/Warnf/Errorf give printf-style call sites a home alongside
// the structured key-value methods above.
func (l *Logger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
	l.maybeSync()
}

func (l *Logger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
	l.maybeSync()
}

func (l *Logger) Warnf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
	l.maybeSync()
}

func (l *Logger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
	l.maybeSync()
}

// Package-level convenience functions operating on the default logger.

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
