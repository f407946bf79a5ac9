// Package logger builds the structured diagnostic logger. Reports go to
// stdout; diagnostics go to stderr and, optionally, a rotated log file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ppiankov/verifact/internal/model"
)

// ParseLevel maps a config level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// New creates a logger writing to console and, when cfg.File is set, to a
// rotated file. The returned closer releases the file and is never nil.
func New(cfg model.LoggingConfig, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	writers := []io.Writer{}
	if console != nil {
		writers = append(writers, console)
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, rotator)
		closer = rotator
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Shorten time format
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String("time", a.Value.Time().Format("15:04:05"))
			}
			return a
		},
	})

	return slog.New(handler), closer, nil
}

// Init builds the logger and installs it as the slog default
func Init(cfg model.LoggingConfig) (*slog.Logger, io.Closer, error) {
	log, closer, err := New(cfg, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(log)
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
