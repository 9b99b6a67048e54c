// Package publish reports terminal jobs as they happen: result files,
// console lines, a live remote viewer and the final summary table.
package publish

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/vk/benchgrid/internal/job"
)

// Publisher receives every job reaching a terminal state. Publish is called
// from the scheduler coordinator, one job at a time.
type Publisher interface {
	Publish(ctx context.Context, j *job.Job) error
}

// Multi forwards each job to all of its publishers and reports every error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, j *job.Job) error {
	var merr *multierror.Error
	for _, p := range m {
		if err := p.Publish(ctx, j); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
