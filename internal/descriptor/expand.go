package descriptor

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/kballard/go-shellquote"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/criterion"
	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/jobid"
	"github.com/vk/benchgrid/internal/plugin"
)

// CompilationTag is carried by every build job.
const CompilationTag = "compilation"

const defaultTimeCoef = 1.5

// Options tunes an Expander.
type Options struct {
	// BuildRoot receives one directory per label.
	BuildRoot   string
	SoftTimeout time.Duration
	HardTimeout time.Duration
	// TimeCoef scales mean+tolerance into a soft timeout. Zero means 1.5.
	TimeCoef float64
}

// Expander turns test expressions into jobs for one profile.
type Expander struct {
	profile *config.Profile
	system  *criterion.System
	filter  plugin.Bound
	tokens  Tokens
	opts    Options
}

// NewExpander prepares the system criteria and the combination filter of the
// profile.
func NewExpander(ctx context.Context, profile *config.Profile, registry *plugin.Registry, opts Options) (*Expander, error) {
	logger := ctxlog.FromContext(ctx)

	system, warnings, err := criterion.NewSystem(profile.Runtime.Criterions, profile.Criterion)
	if err != nil {
		return nil, errdefs.Config(err)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	p, err := registry.Select(profile.Runtime)
	if err != nil {
		return nil, err
	}
	logger.Debug("Expander: plugin selected.", "plugin", p.Name(), "criteria", system.Names())

	return &Expander{
		profile: profile,
		system:  system,
		filter:  plugin.Bound{Plugin: p, Machine: profile.Machine},
		tokens:  NewTokens(profile),
		opts:    opts,
	}, nil
}

// ExpandAll loads and expands every source. Problems are collected across
// files and returned together.
func (e *Expander) ExpandAll(ctx context.Context, sources []Source) ([]*job.Job, error) {
	var (
		jobs []*job.Job
		merr *multierror.Error
	)
	for _, src := range sources {
		f, err := Load(ctx, src, e.tokens, e.opts.BuildRoot)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		expanded, err := e.ExpandFile(ctx, f)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		jobs = append(jobs, expanded...)
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, errdefs.Config(err)
	}
	return jobs, nil
}

// ExpandFile expands every test expression of f in name order.
func (e *Expander) ExpandFile(ctx context.Context, f *File) ([]*job.Job, error) {
	var (
		jobs []*job.Job
		merr *multierror.Error
	)
	for _, name := range f.Names() {
		expanded, err := e.ExpandTE(ctx, f.Source, name, f.Nodes[name])
		if err != nil {
			merr = multierror.Append(merr, errors.Wrapf(err, "%s: %s", f.Source.Path, name))
			continue
		}
		jobs = append(jobs, expanded...)
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, errdefs.Config(err)
	}
	return jobs, nil
}

// teContext is what every job of one test expression shares.
type teContext struct {
	base     jobid.Name
	te       *TE
	srcDir   string
	buildDir string
	attrs    job.Attributes
	valid    job.Validation
	metrics  []job.MetricRule
	soft     time.Duration
	hard     time.Duration
}

// ExpandTE expands a single test expression node.
func (e *Expander) ExpandTE(ctx context.Context, src Source, name string, node map[string]any) ([]*job.Job, error) {
	logger := ctxlog.FromContext(ctx).With("te", name)

	merged, err := e.applyGroups(node)
	if err != nil {
		return nil, err
	}
	te, err := decodeTE(merged)
	if err != nil {
		return nil, errdefs.Config(err)
	}

	tc := &teContext{
		base:     jobid.Name{Label: src.Label, Subtree: src.Subtree, TE: name},
		te:       te,
		srcDir:   src.Dir(),
		buildDir: buildDir(e.opts.BuildRoot, src),
		attrs:    attributes(te.Attributes),
		metrics:  metrics(te.Metric),
	}
	if tc.valid, err = validation(te.Validate, tc.srcDir); err != nil {
		return nil, err
	}
	tc.soft, tc.hard = e.timeouts(te.Validate)

	builds, err := e.buildJobs(ctx, tc)
	if err != nil {
		return nil, err
	}
	runs, err := e.runJobs(ctx, tc, builds)
	if err != nil {
		return nil, err
	}
	logger.Debug("Expander: test expression expanded.", "builds", len(builds), "runs", len(runs))

	jobs := make([]*job.Job, 0, len(builds)+len(runs))
	for _, b := range builds {
		jobs = append(jobs, b.job)
	}
	return append(jobs, runs...), nil
}

// applyGroups merges the profile groups named by the node under it.
func (e *Expander) applyGroups(node map[string]any) (map[string]any, error) {
	var names []string
	switch g := node["group"].(type) {
	case nil:
		return node, nil
	case string:
		names = []string{g}
	case []any:
		for _, v := range g {
			names = append(names, fmt.Sprint(v))
		}
	}
	merged := map[string]any{}
	for _, n := range names {
		group, ok := e.profile.Group[n]
		if !ok {
			return nil, errdefs.Configf("unknown group %q", n)
		}
		merged = deepMerge(merged, group)
	}
	merged = deepMerge(merged, node)
	merged["group"] = node["group"]
	return merged, nil
}

// builtJob is a build job and the combination it was built for.
type builtJob struct {
	job  *job.Job
	comb criterion.Combination
	dir  string
}

func (e *Expander) buildJobs(ctx context.Context, tc *teContext) ([]builtJob, error) {
	b := tc.te.Build
	if !b.Produces() {
		return nil, nil
	}
	matrix, warnings, err := e.system.Resolve(b.Iterate, false)
	if err != nil {
		return nil, errdefs.Config(err)
	}
	combs := matrix.Product(ctx, nil)

	suffix := ""
	if tc.te.Run != nil {
		suffix = "build"
	}
	out := make([]builtJob, 0, len(combs))
	for _, comb := range combs {
		name := tc.base
		name.Suffix = suffix
		name.Comb = comb.Label()

		dir := tc.buildDir
		if comb.Len() > 0 {
			dir = filepath.Join(tc.buildDir, name.TE+"_"+name.Comb)
		}
		if isolated(tc.attrs) {
			// Outputs land in the private directory, runs resolve against it.
			dir = e.workDir(tc, name, dir, "")
		}
		command, err := e.buildCommand(b, tc.srcDir, dir, tc.attrs)
		if err != nil {
			return nil, err
		}
		env, args, params := comb.Render()
		j := e.newJob(tc, name, job.PhaseBuild, comb)
		j.Tags = append(j.Tags, CompilationTag)
		j.DependsOn = append([]string(nil), b.DependsOn...)
		j.Exec = job.Exec{
			Prelude: pmPrelude(b.PackageManager),
			Env:     append(envList(b.Env), env...),
			Command: join(append([]string{command}, append(args, params...)...)...),
			Dir:     e.workDir(tc, name, dir, b.Cwd),
			SrcDir:  tc.srcDir,
		}
		for _, w := range append(warnings, comb.Warnings...) {
			j.Warn(w)
		}
		out = append(out, builtJob{job: j, comb: comb, dir: dir})
	}
	return out, nil
}

func (e *Expander) buildCommand(b *Build, srcDir, dir string, attrs job.Attributes) (string, error) {
	switch {
	case len(b.Files) > 0 || b.Sources != nil:
		return compileCommand(b, srcDir, e.profile.Compiler.Compilers)
	case b.Make != nil:
		makeDir := srcDir
		if attrs.CopyInput {
			makeDir = "."
		}
		if b.Cwd != "" {
			makeDir = absTo(srcDir, b.Cwd)
		}
		return makeCommand(b.Make, makeDir), nil
	case b.CMake != nil:
		return cmakeCommand(b.CMake, srcDir, dir), nil
	case b.Autotools != nil:
		return autotoolsCommand(b.Autotools, srcDir), nil
	case b.Custom != nil:
		if b.Custom.Program == "" {
			return "", errdefs.Configf("build.custom.program is empty")
		}
		return b.Custom.Program, nil
	}
	return "", errdefs.Configf("build node has nothing to build")
}

func (e *Expander) runJobs(ctx context.Context, tc *teContext, builds []builtJob) ([]*job.Job, error) {
	r := tc.te.Run
	if r == nil {
		return nil, nil
	}
	if tc.te.Build.Produces() && len(builds) == 0 {
		ctxlog.FromContext(ctx).Warn("Expander: build matrix is empty, no run job emitted.", "te", tc.base.String())
		return nil, nil
	}
	matrix, warnings, err := e.system.Resolve(r.Iterate, true)
	if err != nil {
		return nil, errdefs.Config(err)
	}
	runCombs := matrix.Product(ctx, e.filter)

	// A reused or absent build still yields one pass over the run matrix.
	parents := builds
	if len(parents) == 0 {
		parents = []builtJob{{dir: tc.buildDir}}
	}

	var jobs []*job.Job
	for _, parent := range parents {
		for _, rc := range runCombs {
			comb := parent.comb.Merge(rc)
			name := tc.base
			name.Comb = comb.Label()

			j := e.newJob(tc, name, job.PhaseRun, comb)
			j.DependsOn = append(j.DependsOn, r.DependsOn...)
			switch {
			case parent.job != nil:
				j.DependsOn = append(j.DependsOn, parent.job.FQName())
			case tc.te.Build != nil && tc.te.Build.Reuse != "":
				j.DependsOn = append(j.DependsOn, jobid.BuildRef(tc.te.Build.Reuse))
			}

			env, args, params := rc.Render()
			j.Exec = job.Exec{
				Prelude: pmPrelude(r.PackageManager),
				Env:     append(envList(r.Env), env...),
				Command: e.runCommand(r, parent.dir, tc.attrs, args, params),
				Dir:     e.workDir(tc, name, parent.dir, r.Cwd),
				SrcDir:  tc.srcDir,
			}
			if nodes, cores, ok, err := e.filter.Resources(comb); err != nil {
				j.Warn(err.Error())
			} else if ok {
				j.Resources = job.Request{Nodes: nodes, Cores: cores}
			}
			for _, w := range append(warnings, comb.Warnings...) {
				j.Warn(w)
			}
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

// runCommand renders `[launcher args] <program> <program args> <params>`.
// Launcher arguments are dropped with the launcher.
func (e *Expander) runCommand(r *Run, dir string, attrs job.Attributes, args, params []string) string {
	program := r.Program
	if attrs.PathResolution && isPath(program) {
		program = absTo(dir, program)
	}
	var parts []string
	rt := e.profile.Runtime
	if attrs.CommandWrap && rt.Program != "" {
		parts = append(parts, rt.Program, rt.Args)
		parts = append(parts, args...)
	}
	if program != "" {
		parts = append(parts, shellquote.Join(program))
	}
	parts = append(parts, r.Args)
	parts = append(parts, params...)
	return join(parts...)
}

// workDir is where a job runs: a private directory when its inputs or
// outputs must not be shared, the phase cwd when given, the build directory
// otherwise.
func (e *Expander) workDir(tc *teContext, name jobid.Name, dir, cwd string) string {
	switch {
	case isolated(tc.attrs):
		return filepath.Join(tc.buildDir, ".jobs", name.JID())
	case cwd != "":
		return absTo(dir, cwd)
	}
	return dir
}

func isolated(a job.Attributes) bool {
	return a.CopyInput || a.CopyOutput
}

// newJob fills the fields shared by both phases. The validation, metric and
// artifact rules of a test expression target its run jobs: a build followed
// by a run only has to exit 0 within the default limits.
func (e *Expander) newJob(tc *teContext, name jobid.Name, phase job.Phase, comb criterion.Combination) *job.Job {
	j := &job.Job{
		Name:        name,
		Phase:       phase,
		Groups:      append([]string(nil), tc.te.Group...),
		Tags:        append([]string(nil), tc.te.Tag...),
		Combination: comb.Map(),
		Attributes:  tc.attrs,
		Validation:  tc.valid,
		Metrics:     tc.metrics,
		Resources:   job.Request{Nodes: 1, Cores: 1},
		SoftTimeout: tc.soft,
		HardTimeout: tc.hard,
		Status:      job.Pending,
	}
	if phase == job.PhaseBuild && tc.te.Run != nil {
		j.Validation = job.Validation{}
		j.Metrics = nil
		j.SoftTimeout, j.HardTimeout = e.opts.SoftTimeout, e.opts.HardTimeout
		return j
	}
	if len(tc.te.Artifact) > 0 {
		j.Artifacts = make(map[string]string, len(tc.te.Artifact))
		for k, v := range tc.te.Artifact {
			j.Artifacts[k] = v
		}
	}
	return j
}

func attributes(a *Attributes) job.Attributes {
	out := job.DefaultAttributes()
	if a == nil {
		return out
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&out.CopyInput, a.CopyInput)
	set(&out.CopyOutput, a.CopyOutput)
	set(&out.CommandWrap, a.CommandWrap)
	set(&out.PathResolution, a.PathResolution)
	return out
}

func metrics(m map[string]Metric) []job.MetricRule {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]job.MetricRule, 0, len(names))
	for _, n := range names {
		out = append(out, job.MetricRule{Name: n, Key: m[n].Key, Unique: m[n].Attributes.Unique})
	}
	return out
}

func validation(v *Validate, srcDir string) (job.Validation, error) {
	var out job.Validation
	if v == nil {
		return out, nil
	}
	if v.ExpectExit != nil {
		out.ExpectExit = *v.ExpectExit
	}
	if t := v.Time; t != nil && t.Mean != nil {
		out.Time = &job.TimeRule{Mean: seconds(*t.Mean), Tolerance: seconds(t.Tolerance)}
	}

	names := make([]string, 0, len(v.Match))
	for n := range v.Match {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		m := v.Match[n]
		expect := true
		if m.Expect != nil {
			expect = *m.Expect
		}
		out.Matches = append(out.Matches, job.MatchRule{Name: n, Expr: m.Expr, Expect: expect})
	}

	if len(v.Analysis) > 0 {
		rule := &job.AnalysisRule{Args: map[string]any{}}
		for k, val := range v.Analysis {
			switch k {
			case "method":
				rule.Method = fmt.Sprint(val)
			case "args":
				if args, ok := val.(map[string]any); ok {
					for ak, av := range args {
						rule.Args[ak] = av
					}
				}
			default:
				rule.Args[k] = val
			}
		}
		if rule.Method == "" {
			return out, errdefs.Configf("validate.analysis needs a method")
		}
		out.Analysis = rule
	}

	if v.Script != nil {
		out.Script = absTo(srcDir, v.Script.Path)
	}
	return out, nil
}

// timeouts computes the soft and hard limits of a test expression.
func (e *Expander) timeouts(v *Validate) (soft, hard time.Duration) {
	soft, hard = e.opts.SoftTimeout, e.opts.HardTimeout
	if v == nil || v.Time == nil {
		return soft, hard
	}
	t := v.Time
	switch {
	case t.SoftTimeout != nil:
		soft = seconds(*t.SoftTimeout)
	case t.Mean != nil:
		coef := e.opts.TimeCoef
		if coef <= 0 {
			coef = defaultTimeCoef
		}
		if t.Coef != nil {
			coef = *t.Coef
		}
		soft = seconds((*t.Mean + t.Tolerance) * coef)
	}
	if t.HardTimeout != nil {
		hard = seconds(*t.HardTimeout)
	}
	return soft, hard
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
