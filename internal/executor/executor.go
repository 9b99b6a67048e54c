// Package executor launches the command of a job as a shell script and
// reports how it ended.
//
// A Runner never fails: launch problems, timeouts and cancellations are all
// described by the returned Outcome so that a worker can hand it back to the
// scheduler unconditionally.
package executor

import (
	"context"
	"time"

	"github.com/vk/benchgrid/internal/job"
)

// Runner executes tasks.
type Runner interface {
	Run(ctx context.Context, t Task) Outcome
}

// Task is the immutable view of a job a worker needs. It is copied out of the
// graph by the coordinator.
type Task struct {
	ID          int
	Name        string
	Exec        job.Exec
	Attributes  job.Attributes
	HardTimeout time.Duration
	Attempt     int
}

// NewTask snapshots j.
func NewTask(j *job.Job) Task {
	e := j.Exec
	e.Prelude = append([]string(nil), e.Prelude...)
	e.Env = append([]string(nil), e.Env...)
	return Task{
		ID:          j.ID,
		Name:        j.FQName(),
		Exec:        e,
		Attributes:  j.Attributes,
		HardTimeout: j.HardTimeout,
		Attempt:     j.Attempts,
	}
}

// Outcome is what happened to a task.
type Outcome struct {
	ID       int
	ExitCode int
	Start    time.Time
	End      time.Time
	Output   string
	// Script is the rendered shell script.
	Script string
	// HardTimeout is set when the process tree was killed on its deadline.
	HardTimeout bool
	// Interrupted is set when the run was cancelled while the task ran.
	Interrupted bool
	// Err is a launch error; the process never ran.
	Err error
}

// Elapsed is the wall time of the task.
func (o Outcome) Elapsed() time.Duration {
	return o.End.Sub(o.Start)
}
