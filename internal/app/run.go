package app

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/vk/benchgrid/internal/classify"
	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/executor"
	"github.com/vk/benchgrid/internal/history"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/plugin"
	"github.com/vk/benchgrid/internal/publish"
	"github.com/vk/benchgrid/internal/scheduler"
	"github.com/vk/benchgrid/internal/session"
)

// Run executes every planned job once and prints the summary. Job failures
// are reported in the returned Report, not as an error.
func (a *App) Run(ctx context.Context) (*Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	sess, err := session.Open(ctx, session.Options{OutputDir: a.cfg.Output, Override: a.cfg.Override})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			a.logger.Warn("Failed to close session.", "error", err)
		}
	}()
	ctx = ctxlog.With(ctx, "run_id", sess.RunID)

	g, err := a.Plan(ctx, sess.BuildRoot())
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: sess.RunID, ResultsPath: sess.ResultsPath(), Jobs: g.Jobs}
	if g.Len() == 0 {
		a.logger.Warn("No jobs found, execution not required.")
		return report, nil
	}

	var hist plugin.History
	if a.cfg.History && !a.cfg.DryRun {
		path := a.cfg.HistoryPath
		if path == "" {
			path = sess.HistoryPath()
		}
		store, err := history.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		hist = store
		defer func() {
			// An interrupted run still records what it finished.
			if err := store.Record(context.WithoutCancel(ctx), sess.RunID, g.Jobs); err != nil {
				a.logger.Warn("Failed to record history.", "error", err)
			}
		}()
	}

	resultsFile, err := os.Create(sess.ResultsPath())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create results file")
	}
	defer resultsFile.Close()

	color := publish.IsTerminal(a.outW)
	pubs := publish.Multi{
		publish.NewJSONL(resultsFile),
		publish.NewConsole(a.outW, a.print, a.printFilter, color),
	}
	var live *publish.Live
	if a.cfg.ReportURI != "" {
		live, err = publish.DialLive(ctx, publish.LiveOptions{URL: a.cfg.ReportURI}, sess.RunID, g.Len())
		if err != nil {
			a.logger.Warn("Live report disabled.", "uri", a.cfg.ReportURI, "error", err)
		} else {
			pubs = append(pubs, live)
		}
	}

	runner := executor.NewLocal(a.cfg.DryRun)
	sched := scheduler.New(g, runner, scheduler.Options{
		Machine:       a.profile.Machine,
		Retries:       a.cfg.Retries,
		GlobalTimeout: a.cfg.Timeout,
		Classifier: &classify.Classifier{
			Analyses: a.registry,
			History:  hist,
			Scripts:  runner,
			DryRun:   a.cfg.DryRun,
		},
		OnTerminal: func(j *job.Job) {
			if err := pubs.Publish(ctx, j); err != nil {
				a.logger.Warn("Failed to publish job.", "job", j.FQName(), "error", err)
			}
		},
	})
	a.mu.Lock()
	a.progress = sched.Progress
	a.mu.Unlock()

	if a.cfg.HealthcheckPort > 0 {
		stop := a.startHealthcheckServer(a.cfg.HealthcheckPort)
		defer stop()
	}

	a.logger.Info("🚀 Starting concurrent execution...", "run_id", sess.RunID, "jobs", g.Len())
	if err := sched.Run(ctx); err != nil {
		return nil, errors.Wrap(err, "execution failed")
	}
	report.Progress = sched.Progress()
	report.Interrupted = ctx.Err() != nil || report.Progress.Counts[job.Cancelled.String()] > 0
	a.logger.Info("🏁 Execution finished.", "failed", report.Failed())

	if live != nil {
		if err := live.Close(report.Progress.Counts); err != nil {
			a.logger.Warn("Failed to close live report.", "error", err)
		}
	}
	publish.Summary(a.outW, g.Jobs, color)
	return report, nil
}
