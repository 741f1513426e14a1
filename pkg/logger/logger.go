// Package logger holds the process-wide zap logger. Library packages log
// through Get, which stays a no-op until the embedding program calls Init,
// so importing mpr as a library never writes to anyone's stdout.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rowpack/mpr/pkg/errors"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Config selects the level and output shape of the global logger
type Config struct {
	// Level is a zap level name: debug, info, warn, error
	Level string
	// Encoding is "json" or "console"
	Encoding string
	// OutputPaths defaults to stdout
	OutputPaths []string
}

// Init builds and installs the global logger. Calling it again replaces the
// previous logger.
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid log level")
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}
	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	if encoding == "console" {
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	l, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      paths,
		ErrorOutputPaths: []string{"stderr"},
	}.Build()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "build logger")
	}

	mu.Lock()
	global = l
	mu.Unlock()
	return nil
}

// Get returns the global logger. A nop logger before Init.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered entries. Safe before Init.
func Sync() error {
	return Get().Sync()
}
