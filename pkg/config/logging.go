package config

import (
	"io"
	"log/slog"
	"strings"
)

// LogConfig selects the slog handler and level
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// SlogLevel maps Level to a slog.Level, falling back to info
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
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

// NewLogger builds a logger writing to w with source locations enabled
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     l.SlogLevel(),
	}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Validate checks the logging configuration
func (l LogConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireOneOf("LOG_LEVEL", strings.ToLower(l.Level), []string{"debug", "info", "warn", "warning", "error"}),
		RequireOneOf("LOG_FORMAT", strings.ToLower(l.Format), []string{"text", "json"}),
	)
}
