package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagFilter(t *testing.T) {
	mpi := &Job{Tags: []string{"mpi", "slow"}}
	omp := &Job{Tags: []string{"omp"}}
	untagged := &Job{}

	testCases := []struct {
		expr     string
		expected []bool
	}{
		{expr: "", expected: []bool{true, true, true}},
		{expr: "mpi", expected: []bool{true, false, false}},
		{expr: "!slow", expected: []bool{false, true, true}},
		{expr: "mpi, omp ,!slow", expected: []bool{false, true, false}},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			f, err := ParseTagFilter(tc.expr)
			require.NoError(t, err)
			got := []bool{f.Match(mpi), f.Match(omp), f.Match(untagged)}
			assert.Equal(t, tc.expected, got)
		})
	}

	_, err := ParseTagFilter("a,!")
	require.Error(t, err)

	f, err := ParseTagFilter(" a , !b ")
	require.NoError(t, err)
	assert.Equal(t, "a,!b", f.String())
	assert.False(t, f.Empty())
}
