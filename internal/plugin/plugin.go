// Package plugin implements the named capability registry consulted while
// expanding and validating jobs.
//
// A plugin is a filter over criterion combinations that may also size the
// resource request of the jobs it admits. Analyses are named validation
// functions receiving the job outcome and a handle to historical timings.
// The built-in "default" plugin is just another registry entry.
package plugin

import (
	"context"
	"time"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/criterion"
	"github.com/vk/benchgrid/internal/job"
)

// Plugin decides whether a combination is worth running on a machine.
type Plugin interface {
	Name() string
	Admit(ctx context.Context, c criterion.Combination, m config.Machine) (bool, error)
}

// Resourcer is implemented by plugins that know how many nodes and cores
// per node a combination needs.
type Resourcer interface {
	Resources(c criterion.Combination, m config.Machine) (job.Request, bool, error)
}

// Run is one historical execution of a job.
type Run struct {
	RunID    string
	Status   job.Status
	Elapsed  time.Duration
	Finished time.Time
}

// History gives access to previous executions, most recent first. A limit
// of 0 returns every known run.
type History interface {
	Previous(ctx context.Context, name string, limit int) ([]Run, error)
}

// AnalysisInput is what an analysis function can look at.
type AnalysisInput struct {
	Name    string
	Elapsed time.Duration
	Output  string
	// History is nil when no history store is configured.
	History History
}

// Verdict is the outcome of an analysis. Skipped verdicts do not affect the
// job status.
type Verdict struct {
	Status  job.Status
	Reason  string
	Skipped bool
}

// Analysis is a named validation function taking keyword arguments.
type Analysis func(ctx context.Context, args map[string]any, in AnalysisInput) (Verdict, error)
