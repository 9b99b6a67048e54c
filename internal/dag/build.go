package dag

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/jobid"
)

// Build constructs a complete, validated dependency graph from the jobs of
// one expansion batch. Every problem found is reported, marked as a
// configuration error.
func Build(ctx context.Context, jobs []*job.Job) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "jobs", len(jobs))
	g := New()
	var merr *multierror.Error

	// First pass: index every job.
	for _, j := range jobs {
		if _, err := g.AddJob(j); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr != nil {
		return nil, errdefs.Config(merr)
	}

	// Second pass: link dependencies.
	for i, j := range g.Jobs {
		for _, raw := range j.DependsOn {
			targets, err := g.resolve(j, raw)
			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", j.FQName(), err))
				continue
			}
			for _, t := range targets {
				if err := g.AddEdge(t, i); err != nil {
					merr = multierror.Append(merr, fmt.Errorf("%s: %w", j.FQName(), err))
				}
			}
		}
	}
	if merr != nil {
		return nil, errdefs.Config(merr)
	}
	logger.Debug("Build: Job linking complete.")

	if err := g.DetectCycles(); err != nil {
		return nil, errdefs.Config(err)
	}
	logger.Debug("Build: Cycle detection passed.", "roots", len(g.Roots()))
	return g, nil
}

// resolve maps a `depends_on` entry to job indices. A full job name wins
// over a test expression of the same name; a bare reference is looked up in
// the referencing file first.
func (g *Graph) resolve(from *job.Job, raw string) ([]int, error) {
	ref, err := jobid.ParseRef(raw)
	if err != nil {
		return nil, err
	}
	for _, cand := range ref.Candidates(from.Name) {
		if !ref.BuildOnly {
			if i, ok := g.byName[cand]; ok {
				return []int{i}, nil
			}
		}
		members, ok := g.byTE[cand]
		if !ok {
			continue
		}
		if !ref.BuildOnly {
			return members, nil
		}
		var builds []int
		for _, m := range members {
			if g.Jobs[m].Phase == job.PhaseBuild {
				builds = append(builds, m)
			}
		}
		if len(builds) == 0 {
			return nil, fmt.Errorf("test expression %q has no build job to reuse", cand)
		}
		return builds, nil
	}
	return nil, fmt.Errorf("dependency %q does not match any job or test expression", raw)
}
