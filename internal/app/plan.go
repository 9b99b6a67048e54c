package app

import (
	"context"
	"io"
	"path/filepath"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/dag"
	"github.com/vk/benchgrid/internal/descriptor"
	"github.com/vk/benchgrid/internal/session"
)

// Plan discovers the descriptors, expands them into jobs and builds the
// dependency graph, restricted to the run filter.
func (a *App) Plan(ctx context.Context, buildRoot string) (*dag.Graph, error) {
	logger := a.logger

	sources, err := descriptor.Discover(a.cfg.Dirs)
	if err != nil {
		return nil, err
	}
	logger.Debug("Descriptors discovered.", "count", len(sources))

	exp, err := descriptor.NewExpander(ctx, a.profile, a.registry, descriptor.Options{
		BuildRoot:   buildRoot,
		SoftTimeout: a.cfg.SoftTimeout,
		HardTimeout: a.cfg.HardTimeout,
		TimeCoef:    a.cfg.TimeCoef,
	})
	if err != nil {
		return nil, err
	}
	jobs, err := exp.ExpandAll(ctx, sources)
	if err != nil {
		return nil, err
	}
	logger.Debug("Test expressions expanded.", "jobs", len(jobs))

	g, err := dag.Build(ctx, jobs)
	if err != nil {
		return nil, err
	}
	if !a.runFilter.Empty() {
		g = g.Filter(a.runFilter.Match)
		logger.Info("Run filter applied.", "filter", a.runFilter.String(), "kept", g.Len(), "of", len(jobs))
	}
	return g, nil
}

// Graph writes the DOT rendering of the planned graph to w without running
// anything.
func (a *App) Graph(ctx context.Context, w io.Writer) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	g, err := a.Plan(ctx, filepath.Join(a.cfg.Output, session.BuildDir))
	if err != nil {
		return err
	}
	return g.DOT(w)
}
