package dag

import "github.com/vk/benchgrid/internal/job"

// Graph is the immutable-after-build dependency graph of a run. Edges go from
// a dependency to its dependents; deps and dependents are kept sorted.
type Graph struct {
	// Jobs is the arena. A job's ID is its index.
	Jobs []*job.Job

	deps       [][]int
	dependents [][]int

	byName map[string]int
	// byTE indexes jobs by the `label/subtree/te` base they expanded from.
	byTE map[string][]int
}
