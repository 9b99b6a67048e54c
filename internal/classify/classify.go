// Package classify turns the raw outcome of a job into its final status,
// extracting metrics and artifact references on the way.
package classify

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/executor"
	"github.com/vk/benchgrid/internal/fsutil"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/plugin"
)

// ScriptLaunchExit is the exit code assumed for a validation script that
// could not be started.
const ScriptLaunchExit = 42

// Analyses looks analysis functions up by name.
type Analyses interface {
	Analysis(name string) (plugin.Analysis, bool)
}

// ScriptRunner runs a validation program with the job output on stdin.
type ScriptRunner interface {
	RunScript(ctx context.Context, path, dir, input string) (int, error)
}

// Verdict is the classification of one attempt.
type Verdict struct {
	Status    job.Status
	Reason    string
	Metrics   map[string][]string
	Artifacts map[string]string
	Warnings  []string
}

// Classifier applies the validation rules of a job to its outcome.
type Classifier struct {
	Analyses Analyses
	// History is handed to analyses; nil disables history-based checks.
	History plugin.History
	Scripts ScriptRunner
	// DryRun reports every outcome as a success.
	DryRun bool
}

// Classify reads only the immutable description of j, so it is safe to call
// from a worker while the coordinator owns the job state.
func (c *Classifier) Classify(ctx context.Context, j *job.Job, out executor.Outcome) Verdict {
	v := Verdict{Status: job.Success}
	if c.DryRun {
		return v
	}
	v.Status, v.Reason = c.status(ctx, j, out, &v)
	v.Metrics = extractMetrics(j.Metrics, out.Output, &v)
	v.Artifacts = resolveArtifacts(j.Artifacts, j.Exec.Dir, &v)

	ctxlog.FromContext(ctx).Debug("Classify: job classified.",
		"job", j.FQName(), "status", v.Status, "reason", v.Reason)
	return v
}

func (v *Verdict) warn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func (c *Classifier) status(ctx context.Context, j *job.Job, out executor.Outcome, v *Verdict) (job.Status, string) {
	rules := j.Validation
	elapsed := out.Elapsed()

	switch {
	case out.HardTimeout:
		return job.TimeoutHard, fmt.Sprintf("killed after %s", j.HardTimeout)
	case out.Interrupted:
		return job.Cancelled, "run interrupted"
	case out.Err != nil:
		return job.Failure, fmt.Sprintf("launch failed (%s): %v", errdefs.Kind(out.Err), out.Err)
	case out.ExitCode != rules.ExpectExit:
		return job.Failure, fmt.Sprintf("exit code %d, expected %d", out.ExitCode, rules.ExpectExit)
	}

	if t := rules.Time; t != nil && t.Mean > 0 {
		low, high := t.Mean-t.Tolerance, t.Mean+t.Tolerance
		if elapsed < low || elapsed > high {
			return job.Failure, fmt.Sprintf("took %s, expected %s ± %s", elapsed.Round(time.Millisecond), t.Mean, t.Tolerance)
		}
	}

	for _, m := range rules.Matches {
		re, err := regexp.Compile(m.Expr)
		if err != nil {
			return job.Failure, fmt.Sprintf("match %q: invalid expression: %v", m.Name, err)
		}
		if found := re.MatchString(out.Output); found != m.Expect {
			if m.Expect {
				return job.Failure, fmt.Sprintf("match %q: %q not found", m.Name, m.Expr)
			}
			return job.Failure, fmt.Sprintf("match %q: %q found", m.Name, m.Expr)
		}
	}

	if a := rules.Analysis; a != nil {
		if status, reason, ok := c.analyse(ctx, j, a, elapsed, out.Output, v); ok && status != job.Success {
			return status, reason
		}
	}

	if rules.Script != "" {
		code := c.runScript(ctx, j, rules.Script, out.Output, v)
		if code != rules.ExpectExit {
			return job.Failure, fmt.Sprintf("validation script exited %d, expected %d", code, rules.ExpectExit)
		}
	}

	if j.SoftTimeout > 0 && elapsed > j.SoftTimeout {
		return job.TimeoutSoft, fmt.Sprintf("took %s, soft limit %s", elapsed.Round(time.Millisecond), j.SoftTimeout)
	}
	return job.Success, ""
}

// analyse runs the analysis rule. ok is false when the rule was skipped.
func (c *Classifier) analyse(ctx context.Context, j *job.Job, a *job.AnalysisRule, elapsed time.Duration, output string, v *Verdict) (job.Status, string, bool) {
	if c.Analyses == nil {
		v.warn("analysis %q skipped: no analyses registered", a.Method)
		return job.Success, "", false
	}
	fn, found := c.Analyses.Analysis(a.Method)
	if !found {
		v.warn("analysis %q skipped: unknown method", a.Method)
		return job.Success, "", false
	}
	res, err := fn(ctx, a.Args, plugin.AnalysisInput{
		Name:    j.FQName(),
		Elapsed: elapsed,
		Output:  output,
		History: c.History,
	})
	if err != nil {
		v.warn("analysis %q skipped: %v", a.Method, errdefs.Plugin(a.Method, err))
		return job.Success, "", false
	}
	if res.Skipped {
		return job.Success, "", false
	}
	return res.Status, res.Reason, true
}

func (c *Classifier) runScript(ctx context.Context, j *job.Job, path, output string, v *Verdict) int {
	if c.Scripts == nil {
		v.warn("validation script %s not run: no script runner", path)
		return ScriptLaunchExit
	}
	code, err := c.Scripts.RunScript(ctx, path, j.Exec.Dir, output)
	if err != nil {
		v.warn("validation script %s: %v", path, err)
		return ScriptLaunchExit
	}
	return code
}

func extractMetrics(rules []job.MetricRule, output string, v *Verdict) map[string][]string {
	if len(rules) == 0 {
		return nil
	}
	metrics := make(map[string][]string, len(rules))
	for _, m := range rules {
		re, err := regexp.Compile(m.Key)
		if err != nil {
			v.warn("metric %q: invalid expression: %v", m.Name, err)
			continue
		}
		limit := -1
		if m.Unique {
			limit = 1
		}
		values := []string{}
		for _, match := range re.FindAllStringSubmatch(output, limit) {
			if len(match) > 1 {
				values = append(values, match[1])
			} else {
				values = append(values, match[0])
			}
		}
		metrics[m.Name] = values
	}
	return metrics
}

func resolveArtifacts(artifacts map[string]string, dir string, v *Verdict) map[string]string {
	if len(artifacts) == 0 {
		return nil
	}
	out := make(map[string]string, len(artifacts))
	for name, path := range artifacts {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if hasMeta(path) {
			matches, err := fsutil.FindFiles(dir, relPattern(dir, path))
			if err != nil || len(matches) == 0 {
				v.warn("artifact %q: nothing matches %s", name, path)
				continue
			}
			path = matches[0]
		}
		out[name] = path
	}
	return out
}

func hasMeta(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func relPattern(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
