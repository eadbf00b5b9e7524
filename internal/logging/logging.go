// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"pulsecheck/internal/config"
)

var (
	mu      sync.Mutex
	rotator *lumberjack.Logger
)

// Init sets level and output. With a log file configured, entries go to both
// stderr and a size-rotated file.
func Init(cfg config.LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}

	writers := []io.Writer{os.Stderr}
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, rotator)
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Quiet routes log output to the file only (or nowhere), for full-screen UIs
// that own the terminal.
func Quiet() {
	mu.Lock()
	defer mu.Unlock()
	if rotator != nil {
		log.SetOutput(rotator)
		return
	}
	log.SetOutput(io.Discard)
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(os.Stderr)
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}
