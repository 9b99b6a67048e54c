package integration_tests

import (
	"fmt"
	"testing"

	"github.com/vk/benchgrid/internal/testutil"
)

// profile renders a single-node profile using the fake compiler for C.
func profile(t *testing.T, cores, workers int) string {
	t.Helper()
	return fmt.Sprintf(`
compiler:
  compilers:
    cc: {program: %q}
machine: {nodes: 1, cores_per_node: %d, concurrent_run: %d}
`, testutil.FakeCompiler(t), cores, workers)
}
