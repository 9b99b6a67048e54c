package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/benchgrid/internal/classify"
	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/dag"
	"github.com/vk/benchgrid/internal/executor"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/resource"
)

// Classifier turns an outcome into a verdict. It is called from workers and
// must only read the immutable description of the job.
type Classifier interface {
	Classify(ctx context.Context, j *job.Job, out executor.Outcome) classify.Verdict
}

// Options tune a run.
type Options struct {
	Machine config.Machine
	// Retries is how many times a FAILURE is re-run before it sticks.
	Retries int
	// GlobalTimeout cancels the whole run once elapsed. Zero disables it.
	GlobalTimeout time.Duration
	// OnTerminal is called on the coordinator goroutine for every job
	// reaching a terminal state.
	OnTerminal func(*job.Job)
	// Classifier defaults to a classify.Classifier without plugins.
	Classifier Classifier
}

// Scheduler runs every job of a graph once.
type Scheduler struct {
	graph   *dag.Graph
	runner  executor.Runner
	opts    Options
	tracker *resource.Tracker

	// Coordinator state.
	remaining []int
	queue     readyQueue
	running   int
	terminal  int
	cancelled bool

	counts [job.Cancelled + 1]atomic.Int64
	done   chan struct{}
}

type work struct {
	job  *job.Job
	task executor.Task
}

type completion struct {
	job     *job.Job
	outcome executor.Outcome
	verdict classify.Verdict
}

// New prepares a scheduler over g. Jobs are expected to be PENDING.
func New(g *dag.Graph, runner executor.Runner, opts Options) *Scheduler {
	if opts.Machine.ConcurrentRun < 1 {
		opts.Machine.ConcurrentRun = 1
	}
	if opts.Classifier == nil {
		opts.Classifier = &classify.Classifier{}
	}
	s := &Scheduler{
		graph:     g,
		runner:    runner,
		opts:      opts,
		tracker:   resource.NewTracker(opts.Machine),
		remaining: make([]int, g.Len()),
		done:      make(chan struct{}),
	}
	s.counts[job.Pending].Store(int64(g.Len()))
	return s
}

// Done is closed once Run has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run executes the graph and returns once every job is terminal. Job failures
// are reported through job statuses, not through the returned error.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	logger := ctxlog.FromContext(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.opts.GlobalTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.opts.GlobalTimeout)
		defer cancelTimeout()
	}

	workers := s.opts.Machine.ConcurrentRun
	tasks := make(chan work)
	results := make(chan completion, workers)

	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			for w := range tasks {
				out := s.runner.Run(runCtx, w.task)
				// Validation of an interrupted job still has to read history
				// and run scripts.
				v := s.opts.Classifier.Classify(context.WithoutCancel(runCtx), w.job, out)
				results <- completion{job: w.job, outcome: out, verdict: v}
			}
			return nil
		})
	}
	defer func() {
		close(tasks)
		_ = eg.Wait()
	}()

	logger.Info("🚀 Starting run.", "jobs", s.graph.Len(), "workers", workers)
	for i, j := range s.graph.Jobs {
		s.remaining[i] = len(s.graph.Dependencies(i))
		if s.remaining[i] == 0 {
			s.makeReady(j)
		}
	}

	stop := runCtx.Done()
	for s.terminal < s.graph.Len() {
		s.admit(ctx, tasks)
		if s.terminal == s.graph.Len() {
			break
		}
		if s.running == 0 && s.queue.Len() == 0 && !s.cancelled {
			return fmt.Errorf("scheduler stalled with %d job(s) left", s.graph.Len()-s.terminal)
		}

		select {
		case c := <-results:
			s.complete(ctx, c)
			s.drain(ctx, results)
		case <-stop:
			stop = nil
			logger.Warn("Run interrupted, cancelling jobs that did not start.", "cause", context.Cause(runCtx))
			s.cancelAll()
		}
	}
	logger.Info("🏁 Run finished.", "jobs", s.graph.Len())
	return nil
}

// drain processes every completion already waiting so that freed resources
// are accounted before the next admission.
func (s *Scheduler) drain(ctx context.Context, results <-chan completion) {
	for {
		select {
		case c := <-results:
			s.complete(ctx, c)
		default:
			return
		}
	}
}

// admit dispatches ready jobs while workers are free. Jobs that do not fit
// the free resources are put back once the pass is over.
func (s *Scheduler) admit(ctx context.Context, tasks chan<- work) {
	if s.cancelled {
		return
	}
	logger := ctxlog.FromContext(ctx)
	var deferred []*job.Job
	for s.running < s.opts.Machine.ConcurrentRun && s.queue.Len() > 0 {
		j := s.queue.pop()
		if err := s.tracker.Fits(j.Resources); err != nil {
			logger.Warn("Job cannot run on this machine.", "job", j.FQName(), "error", err)
			j.Result.Reason = err.Error()
			s.finish(ctx, j, job.Failure)
			continue
		}
		if !s.tracker.Alloc(j.ID, j.Resources) {
			deferred = append(deferred, j)
			continue
		}
		j.Attempts++
		s.set(j, job.Running)
		s.running++
		logger.Debug("Job dispatched.", "job", j.FQName(), "attempt", j.Attempts, "nodes", j.Resources.Nodes, "cores", j.Resources.Cores)
		tasks <- work{job: j, task: executor.NewTask(j)}
	}
	for _, j := range deferred {
		s.queue.push(j)
	}
}

func (s *Scheduler) complete(ctx context.Context, c completion) {
	j := c.job
	s.tracker.Free(j.ID)
	s.running--

	out, v := c.outcome, c.verdict
	j.Result = job.Result{
		ExitCode:  out.ExitCode,
		Start:     out.Start,
		End:       out.End,
		Elapsed:   out.Elapsed(),
		Output:    out.Output,
		Metrics:   v.Metrics,
		Artifacts: v.Artifacts,
		Reason:    v.Reason,
	}
	for _, w := range v.Warnings {
		j.Warn(w)
	}

	if v.Status == job.Failure && j.Attempts <= s.opts.Retries && !s.cancelled {
		ctxlog.FromContext(ctx).Info("🔁 Retrying failed job.", "job", j.FQName(), "attempt", j.Attempts, "reason", v.Reason)
		s.set(j, job.Ready)
		s.queue.push(j)
		return
	}
	s.finish(ctx, j, v.Status)
}

// finish moves j to a terminal status and propagates it to the dependents.
func (s *Scheduler) finish(ctx context.Context, j *job.Job, status job.Status) {
	s.set(j, status)
	if status.Satisfies() {
		for _, d := range s.graph.Dependents(j.ID) {
			s.remaining[d]--
			if s.remaining[d] == 0 && s.graph.Jobs[d].Status == job.Pending {
				s.makeReady(s.graph.Jobs[d])
			}
		}
		return
	}

	logger := ctxlog.FromContext(ctx)
	for _, d := range s.graph.TransitiveDependents(j.ID) {
		dep := s.graph.Jobs[d]
		if dep.Status != job.Pending {
			continue
		}
		dep.Result.Reason = fmt.Sprintf("dependency %s ended %s", j.FQName(), status)
		s.set(dep, job.ErrDep)
		logger.Debug("Job skipped, dependency failed.", "job", dep.FQName(), "dependency", j.FQName())
	}
}

func (s *Scheduler) makeReady(j *job.Job) {
	s.set(j, job.Ready)
	s.queue.push(j)
}

// cancelAll cancels every job that is neither running nor terminal.
func (s *Scheduler) cancelAll() {
	s.cancelled = true
	s.queue = s.queue[:0]
	for _, j := range s.graph.Jobs {
		if j.Status == job.Pending || j.Status == job.Ready {
			j.Result.Reason = "run cancelled"
			s.set(j, job.Cancelled)
		}
	}
}

// set performs a validated transition and keeps the counters in sync.
func (s *Scheduler) set(j *job.Job, to job.Status) {
	if err := job.Transition(j.Status, to); err != nil {
		panic(fmt.Sprintf("scheduler: job %s: %v", j.FQName(), err))
	}
	s.counts[j.Status].Add(-1)
	s.counts[to].Add(1)
	j.Status = to
	if to.IsTerminal() {
		s.terminal++
		if s.opts.OnTerminal != nil {
			s.opts.OnTerminal(j)
		}
	}
}
