// Package logging builds the zap logger shared by the orchestrator and the
// agent executable: human-readable lines on stderr and, when a file is
// configured, JSON lines in .wheee/logs/wheee.log so a run can be inspected
// after the terminal is gone.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Level is a zap level name; empty means info.
	Level string
	// Format selects the console encoding: "console" (default) or "json".
	Format string
	// File receives JSON lines at every enabled level. Empty disables it.
	File string
	// Console overrides stderr.
	Console io.Writer
}

// Logger is a zap logger that owns its log file.
type Logger struct {
	*zap.Logger
	file *os.File
}

// New builds a logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil && strings.TrimSpace(opts.Level) != "" {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if strings.TrimSpace(opts.Level) == "" {
		level = zapcore.InfoLevel
	}

	var console zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if opts.Console != nil {
		console = zapcore.AddSync(opts.Console)
	}
	cores := []zapcore.Core{zapcore.NewCore(newEncoder(opts.Format), console, level)}

	var file *os.File
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.Lock(file), level))
	}
	return &Logger{Logger: zap.New(zapcore.NewTee(cores...)), file: file}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return zapcore.NewJSONEncoder(encoderCfg)
	}
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encoderCfg)
}

// Close flushes buffered entries and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.Logger == nil {
		return nil
	}
	err := l.Sync()
	if err != nil && isStdioSyncError(err) {
		err = nil
	}
	if l.file != nil {
		err = errors.Join(err, l.file.Close())
	}
	return err
}

// Syncing a terminal or pipe fails with EINVAL/ENOTTY on Linux.
func isStdioSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
