package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/classify"
	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/dag"
	"github.com/vk/benchgrid/internal/executor"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/jobid"
)

// behavior scripts what the fake runner does for one job.
type behavior struct {
	exit    int
	sleep   time.Duration
	elapsed time.Duration
	hard    bool
	// failFirst makes the first n attempts exit 1.
	failFirst int
}

type fakeRunner struct {
	mu        sync.Mutex
	behaviors map[string]behavior
	calls     map[string]int
	order     []string
	active    int
	maxActive int
}

func newFakeRunner(b map[string]behavior) *fakeRunner {
	if b == nil {
		b = map[string]behavior{}
	}
	return &fakeRunner{behaviors: b, calls: map[string]int{}}
}

func (f *fakeRunner) Run(ctx context.Context, t executor.Task) executor.Outcome {
	f.mu.Lock()
	b := f.behaviors[t.Name]
	f.calls[t.Name]++
	attempt := f.calls[t.Name]
	f.order = append(f.order, t.Name)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	out := executor.Outcome{ID: t.ID, ExitCode: b.exit, Start: time.Now()}
	if attempt <= b.failFirst {
		out.ExitCode = 1
	}
	if b.sleep > 0 {
		select {
		case <-time.After(b.sleep):
		case <-ctx.Done():
			out.Interrupted = true
			out.ExitCode = -1
		}
	}
	out.HardTimeout = b.hard
	out.End = out.Start.Add(b.elapsed)
	if b.elapsed == 0 {
		out.End = time.Now()
	}
	return out
}

func (f *fakeRunner) ran(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// spec describes a test job: name, dependencies and requested nodes.
type spec struct {
	te    string
	deps  []string
	nodes int
}

func build(t *testing.T, specs ...spec) *dag.Graph {
	t.Helper()
	jobs := make([]*job.Job, 0, len(specs))
	for _, s := range specs {
		nodes := s.nodes
		if nodes == 0 {
			nodes = 1
		}
		jobs = append(jobs, &job.Job{
			Name:      jobid.Name{Label: "lbl", TE: s.te},
			Phase:     job.PhaseRun,
			DependsOn: s.deps,
			Resources: job.Request{Nodes: nodes, Cores: 1},
		})
	}
	g, err := dag.Build(context.Background(), jobs)
	require.NoError(t, err)
	return g
}

func statuses(g *dag.Graph) map[string]job.Status {
	out := make(map[string]job.Status, g.Len())
	for _, j := range g.Jobs {
		out[j.Name.TE] = j.Status
	}
	return out
}

func machine(nodes, workers int) config.Machine {
	return config.Machine{Nodes: nodes, CoresPerNode: 4, ConcurrentRun: workers}
}

func TestRun_ChainRunsInOrder(t *testing.T) {
	g := build(t, spec{te: "c", deps: []string{"b"}}, spec{te: "b", deps: []string{"a"}}, spec{te: "a"})
	r := newFakeRunner(nil)

	var terminal []string
	s := New(g, r, Options{Machine: machine(1, 4), OnTerminal: func(j *job.Job) {
		terminal = append(terminal, j.Name.TE)
	}})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []string{"lbl/a", "lbl/b", "lbl/c"}, r.order)
	assert.Equal(t, []string{"a", "b", "c"}, terminal)
	assert.Equal(t, map[string]job.Status{"a": job.Success, "b": job.Success, "c": job.Success}, statuses(g))

	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed after Run")
	}
	p := s.Progress()
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 3, p.Finished)
	assert.Equal(t, 3, p.Counts["SUCCESS"])
	assert.Equal(t, 0, p.Counts["PENDING"])
}

func TestRun_FailureCascades(t *testing.T) {
	g := build(t,
		spec{te: "a"},
		spec{te: "b", deps: []string{"a"}},
		spec{te: "c", deps: []string{"b"}},
		spec{te: "d"},
	)
	r := newFakeRunner(map[string]behavior{"lbl/a": {exit: 2}})

	require.NoError(t, New(g, r, Options{Machine: machine(1, 2)}).Run(context.Background()))

	assert.Equal(t, map[string]job.Status{
		"a": job.Failure, "b": job.ErrDep, "c": job.ErrDep, "d": job.Success,
	}, statuses(g))
	assert.Zero(t, r.ran("lbl/b"))
	assert.Zero(t, r.ran("lbl/c"))
	assert.Contains(t, g.Jobs[2].Result.Reason, "lbl/a")
}

func TestRun_ConcurrencyBound(t *testing.T) {
	var specs []spec
	behaviors := map[string]behavior{}
	for _, te := range []string{"a", "b", "c", "d", "e", "f"} {
		specs = append(specs, spec{te: te})
		behaviors["lbl/"+te] = behavior{sleep: 30 * time.Millisecond}
	}
	g := build(t, specs...)
	r := newFakeRunner(behaviors)

	require.NoError(t, New(g, r, Options{Machine: machine(8, 2)}).Run(context.Background()))
	assert.Equal(t, 2, r.maxActive)
	for _, j := range g.Jobs {
		assert.Equal(t, job.Success, j.Status)
	}
}

func TestRun_Resources(t *testing.T) {
	t.Run("oversized request fails and cascades", func(t *testing.T) {
		g := build(t, spec{te: "big", nodes: 3}, spec{te: "after", deps: []string{"big"}})
		r := newFakeRunner(nil)

		require.NoError(t, New(g, r, Options{Machine: machine(2, 2)}).Run(context.Background()))
		assert.Equal(t, map[string]job.Status{"big": job.Failure, "after": job.ErrDep}, statuses(g))
		assert.Contains(t, g.Jobs[0].Result.Reason, "requested 3 node(s)")
		assert.Zero(t, r.ran("lbl/big"))
	})

	t.Run("jobs wait for free nodes", func(t *testing.T) {
		g := build(t, spec{te: "x", nodes: 2}, spec{te: "y", nodes: 2})
		r := newFakeRunner(map[string]behavior{
			"lbl/x": {sleep: 30 * time.Millisecond},
			"lbl/y": {sleep: 30 * time.Millisecond},
		})

		m := config.Machine{Nodes: 2, CoresPerNode: 1, ConcurrentRun: 4}
		require.NoError(t, New(g, r, Options{Machine: m}).Run(context.Background()))
		assert.Equal(t, 1, r.maxActive)
		assert.Equal(t, map[string]job.Status{"x": job.Success, "y": job.Success}, statuses(g))
	})

	t.Run("larger requests go first", func(t *testing.T) {
		g := build(t, spec{te: "one", nodes: 1}, spec{te: "four", nodes: 4}, spec{te: "two", nodes: 2})
		r := newFakeRunner(nil)

		require.NoError(t, New(g, r, Options{Machine: machine(4, 1)}).Run(context.Background()))
		assert.Equal(t, []string{"lbl/four", "lbl/two", "lbl/one"}, r.order)
	})
}

func TestRun_Retries(t *testing.T) {
	tests := []struct {
		name     string
		retries  int
		want     job.Status
		attempts int
	}{
		{"no retry", 0, job.Failure, 1},
		{"second attempt passes", 1, job.Success, 2},
		{"retries beyond need", 5, job.Success, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, spec{te: "flaky"})
			r := newFakeRunner(map[string]behavior{"lbl/flaky": {failFirst: 1}})

			require.NoError(t, New(g, r, Options{Machine: machine(1, 1), Retries: tt.retries}).Run(context.Background()))
			assert.Equal(t, tt.want, g.Jobs[0].Status)
			assert.Equal(t, tt.attempts, g.Jobs[0].Attempts)
		})
	}
}

func TestRun_Timeouts(t *testing.T) {
	g := build(t,
		spec{te: "hard"},
		spec{te: "after-hard", deps: []string{"hard"}},
		spec{te: "soft"},
		spec{te: "after-soft", deps: []string{"soft"}},
	)
	for _, j := range g.Jobs {
		j.SoftTimeout = time.Second
	}
	r := newFakeRunner(map[string]behavior{
		"lbl/hard": {exit: -1, hard: true},
		"lbl/soft": {elapsed: 2 * time.Second},
	})

	require.NoError(t, New(g, r, Options{Machine: machine(1, 2)}).Run(context.Background()))
	assert.Equal(t, map[string]job.Status{
		"hard":       job.TimeoutHard,
		"after-hard": job.ErrDep,
		"soft":       job.TimeoutSoft,
		"after-soft": job.Success,
	}, statuses(g))
}

func TestRun_GlobalTimeoutCancels(t *testing.T) {
	g := build(t, spec{te: "slow"}, spec{te: "next", deps: []string{"slow"}})
	r := newFakeRunner(map[string]behavior{"lbl/slow": {sleep: 5 * time.Second}})

	start := time.Now()
	require.NoError(t, New(g, r, Options{Machine: machine(1, 1), GlobalTimeout: 50 * time.Millisecond}).Run(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, map[string]job.Status{"slow": job.Cancelled, "next": job.Cancelled}, statuses(g))
	assert.Zero(t, r.ran("lbl/next"))
}

func TestRun_ContextCancel(t *testing.T) {
	g := build(t, spec{te: "slow"}, spec{te: "queued"})
	r := newFakeRunner(map[string]behavior{"lbl/slow": {sleep: 5 * time.Second}})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	require.NoError(t, New(g, r, Options{Machine: machine(1, 1)}).Run(ctx))
	assert.Equal(t, map[string]job.Status{"slow": job.Cancelled, "queued": job.Cancelled}, statuses(g))
}

// ctxClassifier records whether classification saw a live context.
type ctxClassifier struct {
	mu   sync.Mutex
	errs []error
	next classify.Classifier
}

func (c *ctxClassifier) Classify(ctx context.Context, j *job.Job, out executor.Outcome) classify.Verdict {
	c.mu.Lock()
	c.errs = append(c.errs, ctx.Err())
	c.mu.Unlock()
	return c.next.Classify(ctx, j, out)
}

func TestRun_ClassifyOutlivesCancel(t *testing.T) {
	g := build(t, spec{te: "slow"})
	r := newFakeRunner(map[string]behavior{"lbl/slow": {sleep: 5 * time.Second}})
	c := &ctxClassifier{}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	require.NoError(t, New(g, r, Options{Machine: machine(1, 1), Classifier: c}).Run(ctx))
	assert.Equal(t, map[string]job.Status{"slow": job.Cancelled}, statuses(g))
	require.Len(t, c.errs, 1)
	assert.NoError(t, c.errs[0])
}

func TestRun_EmptyGraph(t *testing.T) {
	g := build(t)
	s := New(g, newFakeRunner(nil), Options{Machine: machine(1, 1)})
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 0, s.Progress().Total)
}
