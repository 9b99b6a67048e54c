package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "benchgrid.yml"), "", 0o644)
	write(t, filepath.Join(root, "b", "c", "benchgrid.yml"), "", 0o644)
	write(t, filepath.Join(root, "a", "benchgrid.yaml"), "", 0o644)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "d", "benchgrid.yml"), 0o755))

	files, err := FindFiles(root, "**/benchgrid.yml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "b", "c", "benchgrid.yml"),
		filepath.Join(root, "benchgrid.yml"),
	}, files)
}

func TestCopyTree(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "copy")
	write(t, filepath.Join(src, "run.sh"), "#!/bin/sh\n", 0o755)
	write(t, filepath.Join(src, "data", "in.txt"), "42", 0o644)

	require.NoError(t, CopyTree(src, dst))

	got, err := os.ReadFile(filepath.Join(dst, "data", "in.txt"))
	require.NoError(t, err)
	assert.Equal(t, "42", string(got))

	info, err := os.Stat(filepath.Join(dst, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}
