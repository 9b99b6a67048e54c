// Package resource tracks the cores held by running jobs on a machine of
// `nodes × cores_per_node` cores.
//
// A Tracker is owned by the scheduler coordinator and is not safe for
// concurrent use.
package resource

import (
	"fmt"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/errdefs"
	"github.com/vk/benchgrid/internal/job"
)

// Tracker records which job holds how many cores on which node.
type Tracker struct {
	capacity int
	free     []int
	// held maps a job ID to the cores it holds per node index.
	held map[int]map[int]int
}

// NewTracker creates an empty tracker for m.
func NewTracker(m config.Machine) *Tracker {
	free := make([]int, m.Nodes)
	for i := range free {
		free[i] = m.CoresPerNode
	}
	return &Tracker{capacity: m.CoresPerNode, free: free, held: map[int]map[int]int{}}
}

// Fits reports whether r could ever be satisfied on an idle machine.
func (t *Tracker) Fits(r job.Request) error {
	switch {
	case r.Nodes < 1 || r.Cores < 1:
		return errdefs.Resourcef("invalid request of %d node(s) x %d core(s)", r.Nodes, r.Cores)
	case r.Nodes > len(t.free):
		return errdefs.Resourcef("requested %d node(s), the machine has %d", r.Nodes, len(t.free))
	case r.Cores > t.capacity:
		return errdefs.Resourcef("requested %d core(s) per node, the machine has %d", r.Cores, t.capacity)
	}
	return nil
}

// Alloc reserves r for job id on the first nodes with enough free cores. It
// takes all or nothing and reports whether it succeeded.
func (t *Tracker) Alloc(id int, r job.Request) bool {
	if _, busy := t.held[id]; busy {
		panic(fmt.Sprintf("resource: job %d already holds resources", id))
	}
	chosen := make([]int, 0, r.Nodes)
	for n, f := range t.free {
		if f >= r.Cores {
			chosen = append(chosen, n)
			if len(chosen) == r.Nodes {
				break
			}
		}
	}
	if len(chosen) < r.Nodes {
		return false
	}
	hold := make(map[int]int, len(chosen))
	for _, n := range chosen {
		t.free[n] -= r.Cores
		hold[n] = r.Cores
	}
	t.held[id] = hold
	return true
}

// Free releases whatever job id holds. Freeing twice is a no-op.
func (t *Tracker) Free(id int) {
	for n, c := range t.held[id] {
		t.free[n] += c
	}
	delete(t.held, id)
}

// Available returns the free cores summed over every node.
func (t *Tracker) Available() int {
	sum := 0
	for _, f := range t.free {
		sum += f
	}
	return sum
}
