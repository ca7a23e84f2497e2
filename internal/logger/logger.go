// Package logger provides structured slog loggers. All logs are written in
// JSON format; the system log rotates by size so long-running deployments
// never fill the disk.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewSystemLogger creates a JSON slog.Logger that writes to
// <logDir>/system.log with size-based rotation. The directory is created if
// it does not exist.
func NewSystemLogger(logDir string, level slog.Level) (*slog.Logger, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "system.log"),
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}

// NewConsoleLogger creates a JSON slog.Logger on stderr. Used by one-shot
// CLI commands where a log file would be noise.
func NewConsoleLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
