package plugin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/criterion"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/plugin"
)

var machine = config.Machine{Nodes: 2, CoresPerNode: 4, ConcurrentRun: 8}

// labels runs the product of the given numeric criteria through p and
// returns the labels of the admitted combinations.
func labels(t *testing.T, p plugin.Plugin, values map[string][]any) []string {
	t.Helper()
	runtime := map[string]map[string]any{}
	catalog := map[string]map[string]any{}
	for name, vs := range values {
		runtime[name] = map[string]any{"numeric": true, "subtitle": name + "="}
		catalog[name] = map[string]any{"values": vs}
	}
	sys, _, err := criterion.NewSystem(runtime, catalog)
	require.NoError(t, err)
	m, _, err := sys.Resolve(nil, true)
	require.NoError(t, err)

	var out []string
	for _, c := range m.Product(context.Background(), plugin.Bound{Plugin: p, Machine: machine}) {
		out = append(out, c.Label())
	}
	return out
}

func TestRegistry_Select(t *testing.T) {
	r := plugin.Default()
	assert.Equal(t, []string{"default", "mpi", "mpi-omp", "omp"}, r.Names())

	testCases := []struct {
		name     string
		runtime  config.Runtime
		expected string
		isConfig bool
	}{
		{name: "nothing configured", expected: "default"},
		{name: "default plugin", runtime: config.Runtime{DefaultPlugin: "omp"}, expected: "omp"},
		{name: "plugin wins", runtime: config.Runtime{Plugin: "mpi", DefaultPlugin: "omp"}, expected: "mpi"},
		{name: "filter wins", runtime: config.Runtime{Plugin: "mpi", Filter: "n_mpi > 1"}, expected: "expr"},
		{name: "unknown", runtime: config.Runtime{Plugin: "slurm"}, isConfig: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := r.Select(tc.runtime)
			if tc.isConfig {
				require.Error(t, err)
				assert.True(t, errdefs.IsConfig(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p.Name())
		})
	}
}

func TestBuiltins_Admit(t *testing.T) {
	r := plugin.Default()

	mpi, err := r.Get("mpi")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"n_mpi=1_n_node=1", "n_mpi=1_n_node=2", "n_mpi=4_n_node=1", "n_mpi=4_n_node=2", "n_mpi=8_n_node=2"},
		labels(t, mpi, map[string][]any{"n_mpi": {1, 4, 8}, "n_node": {1, 2, 3}}),
	)

	omp, err := r.Get("omp")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"n_omp=1", "n_omp=4"},
		labels(t, omp, map[string][]any{"n_omp": {1, 4, 8}}),
	)

	mpiOmp, err := r.Get("mpi-omp")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"n_mpi=1_n_omp=1", "n_mpi=1_n_omp=4", "n_mpi=4_n_omp=1"},
		labels(t, mpiOmp, map[string][]any{"n_mpi": {1, 4}, "n_omp": {1, 4}}),
	)
}

func TestBound_Resources(t *testing.T) {
	r := plugin.Default()
	mpi, err := r.Get("mpi")
	require.NoError(t, err)

	runtime := map[string]map[string]any{"n_mpi": {"numeric": true}, "n_node": {"numeric": true}}
	catalog := map[string]map[string]any{"n_mpi": {"values": []any{6}}, "n_node": {"values": []any{2}}}
	sys, _, err := criterion.NewSystem(runtime, catalog)
	require.NoError(t, err)
	m, _, err := sys.Resolve(nil, true)
	require.NoError(t, err)
	combs := m.Product(context.Background(), nil)
	require.Len(t, combs, 1)

	nodes, cores, ok, err := plugin.Bound{Plugin: mpi, Machine: machine}.Resources(combs[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 3, cores)

	def, err := r.Get("default")
	require.NoError(t, err)
	_, _, ok, err = plugin.Bound{Plugin: def, Machine: machine}.Resources(combs[0])
	require.NoError(t, err)
	assert.False(t, ok, "default plugin does not size jobs")
}

func TestExpr(t *testing.T) {
	p, err := plugin.NewExpr("n_mpi * n_omp <= nodes * cores_per_node && max(n_omp, 2) == n_omp")
	require.NoError(t, err)
	assert.Equal(t, []string{"cores_per_node", "n_mpi", "n_omp", "nodes"}, p.Variables())

	assert.Equal(t,
		[]string{"n_mpi=1_n_omp=2", "n_mpi=1_n_omp=4", "n_mpi=2_n_omp=2", "n_mpi=2_n_omp=4", "n_mpi=4_n_omp=2"},
		labels(t, p, map[string][]any{"n_mpi": {1, 2, 4}, "n_omp": {1, 2, 4}}),
	)

	t.Run("missing criterion is 1", func(t *testing.T) {
		p, err := plugin.NewExpr("n_gpu == 1")
		require.NoError(t, err)
		assert.Equal(t, []string{"n_mpi=1", "n_mpi=2"}, labels(t, p, map[string][]any{"n_mpi": {1, 2}}))
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := plugin.NewExpr("n_mpi <=")
		require.Error(t, err)
		assert.True(t, errdefs.IsConfig(err))
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := plugin.NewExpr("sqrt(n_mpi) > 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sqrt")
	})

	t.Run("non boolean keeps combination with warning", func(t *testing.T) {
		p, err := plugin.NewExpr(`"nope"`)
		require.NoError(t, err)

		runtime := map[string]map[string]any{"n_mpi": {"numeric": true}}
		catalog := map[string]map[string]any{"n_mpi": {"values": []any{1}}}
		sys, _, err := criterion.NewSystem(runtime, catalog)
		require.NoError(t, err)
		m, _, err := sys.Resolve(nil, true)
		require.NoError(t, err)

		combs := m.Product(context.Background(), plugin.Bound{Plugin: p, Machine: machine})
		require.Len(t, combs, 1)
		require.Len(t, combs[0].Warnings, 1)
		assert.Contains(t, combs[0].Warnings[0], `plugin "expr"`)
	})
}

type fakeHistory struct {
	runs []plugin.Run
	err  error
}

func (f fakeHistory) Previous(context.Context, string, int) ([]plugin.Run, error) {
	return f.runs, f.err
}

func TestNotLongerThanPreviousRuns(t *testing.T) {
	fn, ok := plugin.Default().Analysis(plugin.NotLongerThanPreviousRuns)
	require.True(t, ok)

	history := fakeHistory{runs: []plugin.Run{
		{RunID: "c", Status: job.Failure, Elapsed: time.Second},
		{RunID: "b", Status: job.Success, Elapsed: 10 * time.Second},
		{RunID: "a", Status: job.Success, Elapsed: 5 * time.Second},
	}}

	testCases := []struct {
		name     string
		args     map[string]any
		history  plugin.History
		elapsed  time.Duration
		expected plugin.Verdict
		wantErr  bool
	}{
		{
			name:     "no store",
			elapsed:  time.Second,
			expected: plugin.Verdict{Skipped: true, Reason: "no history store"},
		},
		{
			name:     "no successful run",
			history:  fakeHistory{runs: []plugin.Run{{Status: job.Failure}}},
			expected: plugin.Verdict{Skipped: true, Reason: "no successful previous run"},
		},
		{
			name:     "depth 1 compares with last success",
			history:  history,
			elapsed:  10100 * time.Millisecond,
			expected: plugin.Verdict{Status: job.Success},
		},
		{
			name:    "depth -1 uses best of all",
			args:    map[string]any{"history_depth": -1},
			history: history,
			elapsed: 6 * time.Second,
			expected: plugin.Verdict{
				Status: job.TimeoutSoft,
				Reason: "took 6s, previous best 5s (+2% allowed)",
			},
		},
		{
			name:     "tolerance",
			args:     map[string]any{"history_depth": 2, "tolerance": 50},
			history:  history,
			elapsed:  7 * time.Second,
			expected: plugin.Verdict{Status: job.Success},
		},
		{
			name:    "bad argument",
			args:    map[string]any{"tolerance": "lots"},
			history: history,
			wantErr: true,
		},
		{
			name:    "history error",
			history: fakeHistory{err: errors.New("locked")},
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := fn(context.Background(), tc.args, plugin.AnalysisInput{
				Name:    "l/te_n2",
				Elapsed: tc.elapsed,
				History: tc.history,
			})
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}
