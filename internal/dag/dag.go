package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/benchgrid/internal/job"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		byName: make(map[string]int),
		byTE:   make(map[string][]int),
	}
}

// Len is the number of jobs in the graph.
func (g *Graph) Len() int { return len(g.Jobs) }

// AddJob appends j to the arena and sets its ID. Names must be unique.
func (g *Graph) AddJob(j *job.Job) (int, error) {
	name := j.FQName()
	if _, ok := g.byName[name]; ok {
		return -1, fmt.Errorf("duplicate job name %q", name)
	}
	id := len(g.Jobs)
	j.ID = id
	g.Jobs = append(g.Jobs, j)
	g.deps = append(g.deps, nil)
	g.dependents = append(g.dependents, nil)
	g.byName[name] = id
	base := j.Name.Base()
	g.byTE[base] = append(g.byTE[base], id)
	return id, nil
}

// Index looks a job up by its full name.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.byName[name]
	return i, ok
}

// AddEdge records that `to` depends on `from`. Adding an existing edge is a
// no-op.
func (g *Graph) AddEdge(from, to int) error {
	if from < 0 || from >= len(g.Jobs) {
		return fmt.Errorf("source job not found: %d", from)
	}
	if to < 0 || to >= len(g.Jobs) {
		return fmt.Errorf("destination job not found: %d", to)
	}
	if from == to {
		name := g.Jobs[from].FQName()
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", name, name)
	}
	var added bool
	if g.deps[to], added = insertSorted(g.deps[to], from); added {
		g.dependents[from], _ = insertSorted(g.dependents[from], to)
	}
	return nil
}

// Dependencies returns the jobs i depends on.
func (g *Graph) Dependencies(i int) []int { return g.deps[i] }

// Dependents returns the jobs depending on i.
func (g *Graph) Dependents(i int) []int { return g.dependents[i] }

// Roots returns the jobs without dependencies, in index order.
func (g *Graph) Roots() []int {
	var roots []int
	for i := range g.Jobs {
		if len(g.deps[i]) == 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// TransitiveDependents returns every job reachable from i through dependent
// edges, each once, in breadth-first order.
func (g *Graph) TransitiveDependents(i int) []int {
	return g.reach(i, g.dependents)
}

// TransitiveDependencies returns every job i needs, directly or not.
func (g *Graph) TransitiveDependencies(i int) []int {
	return g.reach(i, g.deps)
}

func (g *Graph) reach(start int, edges [][]int) []int {
	seen := map[int]bool{start: true}
	queue := append([]int(nil), edges[start]...)
	var out []int
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		queue = append(queue, edges[n]...)
	}
	return out
}

// DetectCycles runs a white/gray/black depth-first search along dependency
// edges. The first back-edge found is reported with the full path, e.g.
// `a -> b -> a`.
func (g *Graph) DetectCycles() error {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.Jobs))
	var stack []int

	var visit func(n int) error
	visit = func(n int) error {
		color[n] = gray
		stack = append(stack, n)
		for _, d := range g.deps[n] {
			switch color[d] {
			case gray:
				return g.cycleError(stack, d)
			case white:
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for i := range g.Jobs {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) cycleError(stack []int, back int) error {
	start := 0
	for i, n := range stack {
		if n == back {
			start = i
			break
		}
	}
	names := make([]string, 0, len(stack)-start+1)
	for _, n := range stack[start:] {
		names = append(names, g.Jobs[n].FQName())
	}
	names = append(names, g.Jobs[back].FQName())
	return fmt.Errorf("circular dependency: %s", strings.Join(names, " -> "))
}

func insertSorted(s []int, v int) ([]int, bool) {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s, false
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s, true
}
