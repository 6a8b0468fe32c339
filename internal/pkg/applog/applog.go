// Package applog builds the operational zap logger: console output teed with
// an append-only log file that rotates by size.
package applog

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taskflow/core/internal/pkg/logrotate"
)

const (
	defaultLogFilePerm = 0o644
	defaultLogDirPerm  = 0o755

	// SystemLog is the operational log filename.
	SystemLog = "system.log"
	// EmailLog records outbound email in development mode.
	EmailLog = "email.log"
)

// Writer appends to a log file, running the size-based rotation check before
// every write so the live file never grows far past the threshold.
type Writer struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	keep    int
}

// NewWriter creates a rotating file writer for name under dir.
func NewWriter(dir, name string, maxSize int64, keep int) (*Writer, error) {
	if err := os.MkdirAll(dir, defaultLogDirPerm); err != nil {
		return nil, err
	}
	return &Writer{
		path:    filepath.Join(dir, name),
		maxSize: maxSize,
		keep:    keep,
	}, nil
}

// Path returns the live log file path.
func (w *Writer) Path() string { return w.path }

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := logrotate.Rotate(w.path, w.maxSize, w.keep); err != nil {
		return 0, err
	}
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultLogFilePerm)
	if err != nil {
		return 0, err
	}
	n, writeErr := file.Write(p)
	closeErr := file.Close()
	if writeErr != nil {
		return n, writeErr
	}
	return n, closeErr
}

func (w *Writer) Sync() error { return nil }

// NewLogger creates a zap logger writing to stdout and the rotated system
// log file.
func NewLogger(dir string, maxSize int64, keep int) (*zap.Logger, error) {
	writer, err := NewWriter(dir, SystemLog, maxSize, keep)
	if err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(encoder, zapcore.AddSync(writer), level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
