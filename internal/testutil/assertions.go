package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/job"
)

// AssertJobStatus checks the final status of the job named fqName.
func AssertJobStatus(t *testing.T, result *HarnessResult, fqName string, want job.Status) {
	t.Helper()
	require.NoError(t, result.Err)
	require.NotNil(t, result.Report)

	got, ok := result.Report.Status(fqName)
	require.True(t, ok, "job %q not found among %d jobs", fqName, len(result.Report.Jobs))
	require.Equal(t, want, got, "unexpected status for %s\n%s", fqName, result.Output)
}
