package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/modforge/internal/config"
)

// Setup configures the global slog logger based on environment
func Setup(cfg *config.Config) *slog.Logger {
	return setup(os.Stdout, cfg)
}

func setup(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With("service", "modforge")
	slog.SetDefault(logger)
	return logger
}

// WithRequest scopes a logger to one queued request.
func WithRequest(logger *slog.Logger, requestID, sessionID string) *slog.Logger {
	return logger.With("request_id", requestID, "session_id", sessionID)
}
