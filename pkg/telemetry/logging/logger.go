package logging

import (
	"io"
	"log/slog"
	"os"

	"zeno-hq/gateway/pkg/config"
)

// Setup builds the process-wide logger from config and installs it as
// the slog default. secrets are masked in everything logged.
func Setup(cfg config.LoggingConfig, secrets ...string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, cfg, secrets...)))
}

// NewHandler builds a handler per the config, wrapped with secret
// redaction.
func NewHandler(w io.Writer, cfg config.LoggingConfig, secrets ...string) slog.Handler {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &redactingHandler{inner: handler, redactor: NewRedactor(secrets...)}
}
