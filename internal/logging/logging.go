// Package logging provides the package-level structured logger used across
// netsync. It wraps zap the way the rest of the stack expects: a process-wide
// logger configured once at startup via Init, with Debug/Info/Warn/Error/Fatal
// helpers that take structured fields instead of format strings.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's level and encoding.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

var (
	mu     sync.RWMutex
	logger *zap.Logger = zap.NewNop()
)

// Init builds and installs the package logger from cfg. Safe to call more
// than once; the most recent call wins.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{Level: "info", Format: "console"}
	}

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" || cfg.Format == "" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true

	l, err := zcfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// Sync flushes the underlying logger's buffers.
func Sync() error {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l.Sync()
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, fields ...zap.Field) { get().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { get().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { get().Fatal(msg, fields...) }
