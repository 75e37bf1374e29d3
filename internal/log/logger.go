// Package log builds the application's slog handlers and carries the shared
// field names used across components.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Output formats accepted by LOG_FORMAT.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTint = "tint"
)

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string
	Component string
	Writer    io.Writer
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    FormatText,
		Component: ComponentApp,
		Writer:    os.Stdout,
	}
}

// ParseLevel maps debug|info|warn|error to a slog level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidFormat reports whether f names a supported handler.
func ValidFormat(f string) bool {
	switch f {
	case FormatText, FormatJSON, FormatTint:
		return true
	}
	return false
}

// NewHandler returns the handler selected by cfg.Format.
func NewHandler(cfg Config) (slog.Handler, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	switch cfg.Format {
	case "", FormatText:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level}), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level}), nil
	case FormatTint:
		return tint.NewHandler(w, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: time.Kitchen,
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// New creates a logger tagged with cfg.Component. An unknown format falls
// back to text so logging is always available.
func New(cfg Config) *slog.Logger {
	h, err := NewHandler(cfg)
	if err != nil {
		cfg.Format = FormatText
		h, _ = NewHandler(cfg)
	}
	logger := slog.New(h)
	if cfg.Component != "" {
		logger = logger.With(FieldComponent, cfg.Component)
	}
	return logger
}

// WithComponent returns a child logger for the named component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(FieldComponent, component)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
