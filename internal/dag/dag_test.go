package dag

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/jobid"
)

// newJob builds a job of test expression te in `lbl/dir`.
func newJob(te, comb string, phase job.Phase, deps ...string) *job.Job {
	name := jobid.Name{Label: "lbl", Subtree: "dir", TE: te, Comb: comb}
	if phase == job.PhaseBuild {
		name.Suffix = "build"
	}
	return &job.Job{Name: name, Phase: phase, DependsOn: deps}
}

func fqNames(g *Graph, ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.Jobs[id].FQName()
	}
	return out
}

func TestAddEdge(t *testing.T) {
	g := New()
	a, err := g.AddJob(newJob("a", "", job.PhaseRun))
	require.NoError(t, err)
	b, err := g.AddJob(newJob("b", "", job.PhaseRun))
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(a, b))
	require.NoError(t, g.AddEdge(a, b), "edges are deduplicated")
	assert.Equal(t, []int{a}, g.Dependencies(b))
	assert.Equal(t, []int{b}, g.Dependents(a))
	assert.Equal(t, []int{a}, g.Roots())

	assert.ErrorContains(t, g.AddEdge(7, a), "source job not found")
	assert.ErrorContains(t, g.AddEdge(a, 7), "destination job not found")
	assert.ErrorContains(t, g.AddEdge(a, a), "self-referential edge")

	_, err = g.AddJob(newJob("a", "", job.PhaseRun))
	assert.ErrorContains(t, err, `duplicate job name "lbl/dir/a"`)
}

func TestBuild_FanOutAndReferences(t *testing.T) {
	jobs := []*job.Job{
		newJob("lib", "", job.PhaseBuild),
		newJob("lib", "n1", job.PhaseRun, "lbl/dir/lib_build"),
		newJob("lib", "n2", job.PhaseRun, "lbl/dir/lib_build"),
		// Fan-out to every job of `lib` plus a direct reference already covered.
		newJob("app", "n1", job.PhaseRun, "lib", "lbl/dir/lib_n1"),
		// Build-only reuse.
		newJob("tool", "", job.PhaseRun, jobid.BuildRef("lib")),
	}
	g, err := Build(context.Background(), jobs)
	require.NoError(t, err)

	assert.Equal(t, []string{"lbl/dir/lib_build", "lbl/dir/lib_n1", "lbl/dir/lib_n2"}, fqNames(g, g.Dependencies(3)))
	assert.Equal(t, []string{"lbl/dir/lib_build"}, fqNames(g, g.Dependencies(4)))
	assert.Equal(t, []int{0}, g.Roots())
	assert.Equal(t, 3, jobs[3].ID)

	assert.ElementsMatch(t,
		[]string{"lbl/dir/lib_n1", "lbl/dir/lib_n2", "lbl/dir/app_n1", "lbl/dir/tool"},
		fqNames(g, g.TransitiveDependents(0)))
	assert.Empty(t, g.TransitiveDependents(3))
}

func TestBuild_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		jobs     []*job.Job
		contains []string
	}{
		{
			name: "cycle",
			jobs: []*job.Job{
				newJob("a", "", job.PhaseRun, "b"),
				newJob("b", "", job.PhaseRun, "a"),
			},
			contains: []string{"circular dependency: lbl/dir/a -> lbl/dir/b -> lbl/dir/a"},
		},
		{
			name: "duplicates",
			jobs: []*job.Job{
				newJob("a", "", job.PhaseRun),
				newJob("a", "", job.PhaseRun),
			},
			contains: []string{"duplicate job name"},
		},
		{
			name: "dangling references are all reported",
			jobs: []*job.Job{
				newJob("a", "", job.PhaseRun, "ghost"),
				newJob("b", "", job.PhaseRun, "other/ghost", "a"),
			},
			contains: []string{`"ghost" does not match`, `"other/ghost" does not match`, "2 errors occurred"},
		},
		{
			name: "reuse without build",
			jobs: []*job.Job{
				newJob("a", "", job.PhaseRun),
				newJob("b", "", job.PhaseRun, jobid.BuildRef("a")),
			},
			contains: []string{"has no build job to reuse"},
		},
		{
			name:     "malformed reference",
			jobs:     []*job.Job{newJob("a", "", job.PhaseRun, "x y")},
			contains: []string{"contains whitespace"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(context.Background(), tc.jobs)
			require.Error(t, err)
			assert.True(t, errdefs.IsConfig(err))
			for _, c := range tc.contains {
				assert.Contains(t, err.Error(), c)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	build := newJob("x", "", job.PhaseBuild)
	build.Tags = []string{"compilation"}
	run1 := newJob("x", "n1", job.PhaseRun, "lbl/dir/x_build")
	run1.Tags = []string{"fast"}
	run2 := newJob("x", "n2", job.PhaseRun, "lbl/dir/x_build")
	other := newJob("y", "", job.PhaseRun)

	g, err := Build(context.Background(), []*job.Job{build, run1, run2, other})
	require.NoError(t, err)

	f, err := job.ParseTagFilter("fast")
	require.NoError(t, err)
	sub := g.Filter(f.Match)

	require.Equal(t, 2, sub.Len())
	assert.Equal(t, []string{"lbl/dir/x_build", "lbl/dir/x_n1"}, fqNames(sub, []int{0, 1}))
	assert.Equal(t, []int{0}, sub.Dependencies(1))
	assert.Equal(t, 1, run1.ID, "jobs are renumbered")
}

func TestDOT(t *testing.T) {
	g, err := Build(context.Background(), []*job.Job{
		newJob("x", "", job.PhaseBuild),
		newJob("x", "n1", job.PhaseRun, "lbl/dir/x_build"),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.DOT(&buf))
	assert.Equal(t, `digraph benchgrid {
  rankdir=LR;
  "lbl/dir/x_build" [shape=box];
  "lbl/dir/x_n1" [shape=ellipse];
  "lbl/dir/x_build" -> "lbl/dir/x_n1";
}
`, buf.String())
}
