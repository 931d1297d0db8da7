// Package logging provides the operational log for the launcher.
// Every component writes through a zap sugared logger; once Init runs the
// output goes to <data-dir>/logs/launcher.log with size-based rotation.
// Until then (and in tests) logging is a no-op.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LogFileName is the name of the operational log file.
	LogFileName = "launcher.log"
	// LogDirName is the directory under the data dir holding the log file.
	LogDirName = "logs"

	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Options configures Init.
type Options struct {
	// Dir is the application data directory.
	Dir string
	// Debug lowers the level to debug.
	Debug bool
	// Console, when set, additionally receives warnings and errors.
	Console io.Writer
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	sugar   = base.Sugar()
	rotator *lumberjack.Logger
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init opens the log file and installs the package logger.
// Calling Init again replaces the previous logger.
func Init(opts Options) error {
	if opts.Dir == "" {
		return fmt.Errorf("logging: data directory is required")
	}
	logPath := Path(opts.Dir)
	//nolint:gosec // G301: data directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	if opts.Debug {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}

	rotator = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(rotator), level),
	}
	if opts.Console != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(opts.Console),
			zapcore.WarnLevel,
		))
	}

	base = zap.New(zapcore.NewTee(cores...))
	sugar = base.Sugar()
	sugar.Infof("=== launcher log started at %s ===", time.Now().Format(time.RFC3339))
	return nil
}

// L returns the package logger. It is never nil.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Named returns a child logger tagged with the component name.
func Named(component string) *zap.SugaredLogger {
	return L().Named(component)
}

// Close flushes and closes the log file. Safe to call more than once.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	_ = base.Sync()
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
	base = zap.NewNop()
	sugar = base.Sugar()
}

// Path returns the log file location for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, LogDirName, LogFileName)
}
