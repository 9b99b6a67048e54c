package app

import (
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/scheduler"
)

// Report is what a finished run leaves behind.
type Report struct {
	RunID       string
	ResultsPath string
	Jobs        []*job.Job
	Progress    scheduler.Progress
	// Interrupted is set when the run was cancelled before every job ran.
	Interrupted bool
}

// Failed counts the jobs that ended in a failing status.
func (r *Report) Failed() int {
	n := 0
	for _, j := range r.Jobs {
		if j.Status.Failed() {
			n++
		}
	}
	return n
}

// Status returns the final status of the job named fqName.
func (r *Report) Status(fqName string) (job.Status, bool) {
	for _, j := range r.Jobs {
		if j.FQName() == fqName {
			return j.Status, true
		}
	}
	return job.Pending, false
}
