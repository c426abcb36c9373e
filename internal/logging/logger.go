package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds logger configuration.
type Config struct {
	Level      slog.Level
	OutputFile string // path to log file (empty = stderr only)
	JSONFormat bool   // JSON handler (default: text)
	AddSource  bool   // add source file and line number
}

// Initialize configures the process-wide slog default logger.
// Component packages pick it up via slog.Default().With("component", ...).
func Initialize(config Config) (io.Closer, error) {
	var writers []io.Writer
	writers = append(writers, os.Stderr)

	var file *os.File
	if config.OutputFile != "" {
		dir := filepath.Dir(config.OutputFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}

		f, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.OutputFile, err)
		}
		file = f
		writers = append(writers, f)
	}

	multiWriter := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{
		Level:     config.Level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.JSONFormat {
		handler = slog.NewJSONHandler(multiWriter, opts)
	} else {
		handler = slog.NewTextHandler(multiWriter, opts)
	}

	slog.SetDefault(slog.New(handler))

	if file != nil {
		return file, nil
	}
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(debugMode bool) Config {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	return Config{
		Level:      level,
		JSONFormat: !debugMode, // human-readable in debug, JSON in production
		AddSource:  debugMode,
	}
}
