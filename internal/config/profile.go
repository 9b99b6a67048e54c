package config

import (
	"context"
)

// Loader reads a profile from a given path.
type Loader interface {
	Load(ctx context.Context, path string) (*Profile, error)
}

// Profile is the unified representation of a run profile.
type Profile struct {
	Compiler  Compiler                  `yaml:"compiler"`
	Criterion map[string]map[string]any `yaml:"criterion"`
	Group     map[string]map[string]any `yaml:"group"`
	Machine   Machine                   `yaml:"machine"`
	Runtime   Runtime                   `yaml:"runtime"`
}

// Compiler maps a language key (cc, cxx, fc, cu...) to its toolchain.
type Compiler struct {
	Compilers map[string]CompilerDef `yaml:"compilers"`
}

// CompilerDef describes one language toolchain.
type CompilerDef struct {
	Program string `yaml:"program"`
	// Args are always passed, before variant arguments.
	Args string `yaml:"args"`
	// Extensions overrides the built-in source extension mapping.
	Extensions []string           `yaml:"extensions"`
	Variants   map[string]Variant `yaml:"variants"`
}

// Variant is a named set of extra compiler arguments (openmp, debug...).
type Variant struct {
	Args string `yaml:"args"`
}

// Machine is the resource budget of a run. Read-only once a run starts.
type Machine struct {
	Nodes         int `yaml:"nodes" json:"nodes"`
	CoresPerNode  int `yaml:"cores_per_node" json:"cores_per_node"`
	ConcurrentRun int `yaml:"concurrent_run" json:"concurrent_run"`
}

// Runtime describes how run jobs are launched.
type Runtime struct {
	// Program is the launcher (mpirun, srun...) prepended to wrapped commands.
	Program string `yaml:"program"`
	Args    string `yaml:"args"`
	// Criterions declares how each system criterion is rendered.
	Criterions    map[string]map[string]any `yaml:"criterions"`
	Plugin        string                    `yaml:"plugin"`
	DefaultPlugin string                    `yaml:"defaultplugin"`
	// Filter is an expression admitting combinations, e.g.
	// `n_mpi * n_omp <= nodes * cores_per_node`.
	Filter string `yaml:"filter"`
}

// Slots is the total number of cores of the machine.
func (m Machine) Slots() int {
	return m.Nodes * m.CoresPerNode
}
