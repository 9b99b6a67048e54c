package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/benchgrid/internal/errdefs"
)

const sampleProfile = `
compiler:
  compilers:
    cc:
      program: gcc
      variants:
        openmp: {args: -fopenmp}
machine:
  nodes: 2
  cores_per_node: 8
runtime:
  program: mpirun
  criterions:
    n_mpi: {option: "-np ", numeric: true, subtitle: n}
criterion:
  n_mpi: {values: [1, 2, 4]}
group:
  GRPSERIAL:
    run:
      iterate:
        n_mpi: {values: [1]}
`

func TestYAMLLoader_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0600))

	p, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "gcc", p.Compiler.Compilers["cc"].Program)
	assert.Equal(t, "-fopenmp", p.Compiler.Compilers["cc"].Variants["openmp"].Args)
	assert.Equal(t, Machine{Nodes: 2, CoresPerNode: 8, ConcurrentRun: 16}, p.Machine)
	assert.Equal(t, "-np ", p.Runtime.Criterions["n_mpi"]["option"])
	assert.Equal(t, []any{1, 2, 4}, p.Criterion["n_mpi"]["values"])
	assert.Contains(t, p.Group, "GRPSERIAL")
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{name: "yaml syntax", src: "machine: [nodes"},
		{name: "schema violation", src: "machine: {nodes: -1}"},
		{name: "unknown section", src: "bank: {path: /tmp}"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), "p.yml", []byte(tc.src))
			require.Error(t, err)
			assert.True(t, errdefs.IsConfig(err))
		})
	}

	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.True(t, errdefs.IsConfig(err))
}

func TestMachine_Normalize(t *testing.T) {
	m := Machine{}
	require.NoError(t, m.Normalize(context.Background()))
	assert.Equal(t, 1, m.Nodes)
	assert.GreaterOrEqual(t, m.CoresPerNode, 1)
	assert.Equal(t, m.CoresPerNode, m.ConcurrentRun)

	explicit := Machine{Nodes: 3, CoresPerNode: 2, ConcurrentRun: 1}
	require.NoError(t, explicit.Normalize(context.Background()))
	assert.Equal(t, Machine{Nodes: 3, CoresPerNode: 2, ConcurrentRun: 1}, explicit)
	assert.Equal(t, 6, explicit.Slots())
}
