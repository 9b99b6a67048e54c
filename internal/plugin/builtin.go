package plugin

import (
	"context"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/criterion"
	"github.com/vk/benchgrid/internal/job"
)

// DefaultName is the plugin used when the profile selects none.
const DefaultName = "default"

// Builtins registers the plugins and analyses shipped with benchgrid.
type Builtins struct{}

// Register implements Module.
func (Builtins) Register(r *Registry) {
	r.Register(admitAll{})
	r.Register(mpi{})
	r.Register(omp{})
	r.Register(mpiOmp{})
	r.RegisterAnalysis(NotLongerThanPreviousRuns, notLongerThanPreviousRuns)
}

type admitAll struct{}

func (admitAll) Name() string { return DefaultName }

func (admitAll) Admit(context.Context, criterion.Combination, config.Machine) (bool, error) {
	return true, nil
}

// mpi rejects combinations asking for more ranks or nodes than the machine has.
type mpi struct{}

func (mpi) Name() string { return "mpi" }

func (mpi) Admit(_ context.Context, c criterion.Combination, m config.Machine) (bool, error) {
	nMPI, nNode := intOf(c, "n_mpi", 1), intOf(c, "n_node", 1)
	return nMPI <= nNode*m.CoresPerNode && nNode <= m.Nodes, nil
}

func (mpi) Resources(c criterion.Combination, _ config.Machine) (job.Request, bool, error) {
	return spread(intOf(c, "n_mpi", 1)*intOf(c, "n_omp", 1), intOf(c, "n_node", 1)), true, nil
}

// omp rejects combinations with more threads than cores.
type omp struct{}

func (omp) Name() string { return "omp" }

func (omp) Admit(_ context.Context, c criterion.Combination, m config.Machine) (bool, error) {
	nOMP := intOf(c, "n_omp", 1)
	nCore := intOf(c, "n_core", m.CoresPerNode)
	return nOMP <= min(nCore, m.CoresPerNode), nil
}

func (omp) Resources(c criterion.Combination, _ config.Machine) (job.Request, bool, error) {
	return job.Request{Nodes: 1, Cores: intOf(c, "n_omp", 1)}, true, nil
}

type mpiOmp struct{}

func (mpiOmp) Name() string { return "mpi-omp" }

func (mpiOmp) Admit(_ context.Context, c criterion.Combination, m config.Machine) (bool, error) {
	nMPI, nOMP, nNode := intOf(c, "n_mpi", 1), intOf(c, "n_omp", 1), intOf(c, "n_node", 1)
	switch {
	case nMPI*nOMP > nNode*m.CoresPerNode:
		return false, nil
	case nNode > m.Nodes:
		return false, nil
	case nOMP > m.CoresPerNode:
		return false, nil
	}
	return true, nil
}

func (mpiOmp) Resources(c criterion.Combination, _ config.Machine) (job.Request, bool, error) {
	return spread(intOf(c, "n_mpi", 1)*intOf(c, "n_omp", 1), intOf(c, "n_node", 1)), true, nil
}

// spread distributes cores evenly over nodes.
func spread(cores, nodes int) job.Request {
	if nodes < 1 {
		nodes = 1
	}
	if cores < 1 {
		cores = 1
	}
	return job.Request{Nodes: nodes, Cores: (cores + nodes - 1) / nodes}
}

func intOf(c criterion.Combination, name string, def int) int {
	v, ok := c.Get(name)
	if !ok {
		return def
	}
	i, ok := v.Int()
	if !ok {
		return def
	}
	return int(i)
}
