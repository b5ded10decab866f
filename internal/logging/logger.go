package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/lox/rainmap/internal/config"
)

// New builds the process logger: tint-coloured text for local use, JSON when
// LOG_FORMAT=json.
func New(w io.Writer, cfg config.Config, appName string) *slog.Logger {
	var h slog.Handler
	if cfg.Logging.Format == "json" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: cfg.Logging.SlogLevel(),
		})
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      cfg.Logging.SlogLevel(),
			AddSource:  cfg.Logging.SlogLevel() == slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
	}

	logger := slog.New(h).With("app", appName)
	if cfg.Container != "" {
		logger = logger.With("container", cfg.Container)
	}
	return logger
}
