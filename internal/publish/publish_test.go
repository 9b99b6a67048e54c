package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/jobid"
)

func terminalJob(te string, status job.Status, output string, tags ...string) *job.Job {
	return &job.Job{
		Name:     jobid.Name{Label: "lbl", Subtree: "dir", TE: te, Comb: "n_1"},
		Phase:    job.PhaseRun,
		Tags:     tags,
		Status:   status,
		Attempts: 1,
		Result:   job.Result{ExitCode: 0, Elapsed: 1500 * time.Millisecond, Output: output},
	}
}

func TestJSONL(t *testing.T) {
	var buf bytes.Buffer
	p := NewJSONL(&buf)
	j := terminalJob("a", job.Success, "hello\n")
	j.Result.Metrics = map[string][]string{"bw": {"10"}}
	require.NoError(t, p.Publish(context.Background(), j))
	require.NoError(t, p.Publish(context.Background(), terminalJob("b", job.Failure, "")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	id := rec["id"].(map[string]any)
	assert.Equal(t, "lbl/dir/a_n_1", id["fq_name"])
	result := rec["result"].(map[string]any)
	assert.Equal(t, "SUCCESS", result["state"])
	assert.Equal(t, 1.5, result["time"])
	assert.Equal(t, "hello\n", result["output"])
	assert.Equal(t, map[string]any{"bw": []any{"10"}}, rec["data"].(map[string]any)["metrics"])
}

func TestParsePrintPolicy(t *testing.T) {
	for in, want := range map[string]PrintPolicy{"": PrintNone, "none": PrintNone, "Errors": PrintErrors, "all": PrintAll} {
		got, err := ParsePrintPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePrintPolicy("some")
	assert.Error(t, err)
}

func TestConsole(t *testing.T) {
	mpi, err := job.ParseTagFilter("mpi")
	require.NoError(t, err)

	tests := []struct {
		name       string
		policy     PrintPolicy
		filter     job.TagFilter
		job        *job.Job
		wantOutput bool
	}{
		{"none hides output", PrintNone, job.TagFilter{}, terminalJob("a", job.Failure, "boom"), false},
		{"errors shows failures", PrintErrors, job.TagFilter{}, terminalJob("a", job.Failure, "boom"), true},
		{"errors hides successes", PrintErrors, job.TagFilter{}, terminalJob("a", job.Success, "boom"), false},
		{"all shows successes", PrintAll, job.TagFilter{}, terminalJob("a", job.Success, "boom"), true},
		{"filter keeps tagged job", PrintAll, mpi, terminalJob("a", job.Success, "boom", "mpi"), true},
		{"filter drops untagged job", PrintAll, mpi, terminalJob("a", job.Success, "boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewConsole(&buf, tt.policy, tt.filter, false).Publish(context.Background(), tt.job))
			out := buf.String()
			assert.Contains(t, out, tt.job.Status.String())
			assert.Contains(t, out, "lbl/dir/a_n_1")
			if tt.wantOutput {
				assert.Contains(t, out, "    | boom")
			} else {
				assert.NotContains(t, out, "boom")
			}
		})
	}
}

func TestConsole_Reason(t *testing.T) {
	var buf bytes.Buffer
	j := terminalJob("a", job.ErrDep, "")
	j.Result.Reason = "dependency lbl/dir/b ended FAILURE"
	require.NoError(t, NewConsole(&buf, PrintNone, job.TagFilter{}, false).Publish(context.Background(), j))
	assert.Contains(t, buf.String(), "(dependency lbl/dir/b ended FAILURE)")
}

func TestSummary(t *testing.T) {
	jobs := []*job.Job{
		terminalJob("a", job.Success, ""),
		terminalJob("b", job.Success, ""),
		terminalJob("c", job.Failure, ""),
		terminalJob("d", job.ErrDep, ""),
	}
	jobs[2].Result.Reason = "exit code 1, expected 0"

	var buf bytes.Buffer
	Summary(&buf, jobs, false)
	out := buf.String()
	assert.Contains(t, out, "Run summary")
	assert.Contains(t, out, "TIMEOUT_HARD")
	assert.Contains(t, out, "exit code 1, expected 0")
	assert.Contains(t, out, "lbl/dir/d_n_1")
	assert.NotContains(t, out, "lbl/dir/a_n_1")
}

type failing struct{ err error }

func (f failing) Publish(context.Context, *job.Job) error { return f.err }

func TestMulti(t *testing.T) {
	var buf bytes.Buffer
	m := Multi{failing{errors.New("first")}, NewJSONL(&buf), failing{errors.New("second")}}
	err := m.Publish(context.Background(), terminalJob("a", job.Success, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
	assert.NotEmpty(t, buf.String(), "a failing publisher does not stop the others")

	assert.NoError(t, Multi{}.Publish(context.Background(), terminalJob("a", job.Success, "")))
}

func TestDialLive_BadURI(t *testing.T) {
	_, err := DialLive(context.Background(), LiveOptions{URL: "localhost"}, "run", 1)
	assert.ErrorContains(t, err, "needs a scheme and a host")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
