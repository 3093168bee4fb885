package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/storekit/config-hub/pkg/auth"
)

// Watcher polls the config file and hot-reloads the auth policy so tokens
// can be rotated without dropping live subscriber connections. Other config
// sections still require a restart.
type Watcher struct {
	path      string
	validator *auth.Validator
	interval  time.Duration
	logger    *slog.Logger
	lastMod   time.Time
}

func NewWatcher(path string, validator *auth.Validator, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:      path,
		validator: validator,
		interval:  5 * time.Second,
		logger:    logger,
	}
}

func (w *Watcher) Watch(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				w.logger.Warn("config stat failed", "path", w.path, "error", err)
				continue
			}

			if !info.ModTime().After(w.lastMod) {
				continue
			}

			w.lastMod = info.ModTime()

			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Error("config reload failed", "path", w.path, "error", err)
				continue
			}

			if err := w.validator.Replace(cfg.Auth); err != nil {
				w.logger.Error("auth policy reload failed", "error", err)
				continue
			}
			w.logger.Info("auth policy reloaded", "mode", cfg.Auth.Mode, "tokens", len(cfg.Auth.Tokens))
		}
	}
}
