package app

import (
	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/errdefs"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	config.Settings
	// Dirs are the descriptor roots, `label:path` or a bare path.
	Dirs []string
}

// NewConfig validates cfg and fills the defaults that depend on other
// fields.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Dirs) == 0 {
		cfg.Dirs = []string{"."}
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, errdefs.Configf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, errdefs.Configf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	return &cfg, nil
}
