package app

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/plugin"
	"github.com/vk/benchgrid/internal/publish"
	"github.com/vk/benchgrid/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *plugin.Registry
	profile  *config.Profile
	cfg      *Config

	runFilter   job.TagFilter
	printFilter job.TagFilter
	print       publish.PrintPolicy

	mu       sync.Mutex
	progress func() scheduler.Progress
}

// NewApp loads the profile and prepares the plugin registry. Built-in
// plugins are registered first, then the given modules.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...plugin.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	profile, err := loader.Load(ctx, cfg.Profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load profile")
	}
	logger.Debug("Profile loaded.", "path", cfg.Profile, "machine", profile.Machine)

	reg := plugin.New(append([]plugin.Module{plugin.Builtins{}}, modules...)...)
	logger.Debug("Plugins registered.", "plugins", reg.Names())

	a := &App{outW: outW, logger: logger, registry: reg, profile: profile, cfg: cfg}
	if a.runFilter, err = job.ParseTagFilter(cfg.RunFilter); err != nil {
		return nil, flagError(err, "run-filter")
	}
	if a.printFilter, err = job.ParseTagFilter(cfg.PrintFilter); err != nil {
		return nil, flagError(err, "print-filter")
	}
	if a.print, err = publish.ParsePrintPolicy(cfg.Print); err != nil {
		return nil, flagError(err, "print")
	}
	return a, nil
}

// Registry returns the application's plugin registry. This is primarily for
// testing.
func (a *App) Registry() *plugin.Registry {
	return a.registry
}

// Profile returns the loaded profile.
func (a *App) Profile() *config.Profile {
	return a.profile
}

func flagError(err error, flag string) error {
	return errdefs.Config(errors.Wrapf(err, "invalid --%s", flag))
}
