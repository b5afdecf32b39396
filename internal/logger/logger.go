// Package logger provides the structured slog logger used by the knock CLI.
// All logs are written in JSON format to <logDir>/knock.log, rotated by size.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileName   = "knock.log"
	maxSizeMB     = 10
	maxBackups    = 5
	maxAgeDays    = 30
	compressOlder = true
)

// NewSystemLogger creates a JSON slog.Logger that writes to <logDir>/knock.log.
// The directory is created if it does not exist. The returned io.Closer
// releases the underlying log file.
func NewSystemLogger(logDir string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   compressOlder,
	}

	return New(w, level), w, nil
}

// New creates a JSON slog.Logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
