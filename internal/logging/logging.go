// ABOUTME: Structured logging with zap, rotated to disk through lumberjack.
// ABOUTME: Named child loggers per component plus nop/capture helpers for tests.
package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Options configures the process logger.
type Options struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// File receives JSON logs with rotation. Empty disables file logging.
	File string
	// Console mirrors logs to stderr in human-readable form.
	Console bool
}

// Init builds the process logger. Until Init is called every logger is a nop,
// which keeps library use and tests quiet.
func Init(opts Options) error {
	level := zap.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return err
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
			return err
		}
		logFile := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(logFile), level))
	}
	if opts.Console {
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level))
	}

	set(zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	return nil
}

// Named returns a component logger with optional fixed fields.
func Named(name string, fields ...zap.Field) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Named(name).With(fields...)
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

// SetNop silences all logging.
func SetNop() {
	set(zap.NewNop())
}

// SetCapture sends JSON logs at level and above into buf.
func SetCapture(buf *bytes.Buffer, level zapcore.Level) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(buf), level)
	set(zap.New(core))
}

func set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}
