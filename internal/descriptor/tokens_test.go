package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/config"
)

func TestTokens_Replace(t *testing.T) {
	profile := &config.Profile{
		Compiler: config.Compiler{Compilers: map[string]config.CompilerDef{"cc": {Program: "mpicc"}}},
		Runtime:  config.Runtime{Program: "srun"},
	}
	tokens := NewTokens(profile)

	out, err := tokens.Replace("@COMPILER_CC@ @RUNTIME_PROGRAM@ @SRCPATH@ @BUILDPATH@ @ROOTPATH@ @BROOTPATH@", testSource, "/build")
	require.NoError(t, err)
	assert.Equal(t, "mpicc srun /src/sub /build/lbl/sub /src /build/lbl", out)

	_, err = tokens.Replace("@ZZ@ @AA@ @ZZ@ user@example.com", testSource, "/build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown token(s) @AA@, @ZZ@")
}
