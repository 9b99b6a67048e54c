package dag

import (
	"github.com/vk/benchgrid/internal/job"
)

// Filter returns the subgraph of the jobs accepted by keep plus everything
// they transitively depend on. Jobs are shared with g and renumbered.
func (g *Graph) Filter(keep func(*job.Job) bool) *Graph {
	kept := make([]bool, len(g.Jobs))
	for i, j := range g.Jobs {
		if kept[i] || !keep(j) {
			continue
		}
		kept[i] = true
		for _, d := range g.TransitiveDependencies(i) {
			kept[d] = true
		}
	}

	sub := New()
	remap := make(map[int]int, len(g.Jobs))
	for i, j := range g.Jobs {
		if !kept[i] {
			continue
		}
		id, _ := sub.AddJob(j)
		remap[i] = id
	}
	for i := range g.Jobs {
		to, ok := remap[i]
		if !ok {
			continue
		}
		for _, d := range g.deps[i] {
			_ = sub.AddEdge(remap[d], to)
		}
	}
	return sub
}
