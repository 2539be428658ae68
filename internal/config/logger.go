package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new slog.Logger based on the application configuration.
func NewLogger() *slog.Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a configured slog.Logger writing to w.
func NewLoggerWithWriter(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(AppConfig.Logger.Level),
		AddSource: AppConfig.Logger.AddSource,
	}

	var handler slog.Handler
	if AppConfig.Logger.JSONOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLogLevel maps a level name to its slog.Level, defaulting to info for
// anything it does not recognize.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
