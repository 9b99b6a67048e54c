package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/errdefs"
)

func TestLoadSettings_Defaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)
	v.Set("profile", "profile.yml")

	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, ".benchgrid", s.Output)
	assert.Equal(t, "errors", s.Print)
	assert.True(t, s.History)
	assert.Equal(t, time.Hour, s.HardTimeout)
	assert.Equal(t, 1.5, s.TimeCoef)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(file, []byte("profile: p.yml\nretries: 2\ntimeout: 90s\nprint_filter: mpi,!slow\n"), 0o644))
	t.Setenv("BENCHGRID_RETRIES", "3")

	v, err := NewViper(file)
	require.NoError(t, err)
	s, err := LoadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "p.yml", s.Profile)
	assert.Equal(t, 3, s.Retries, "environment wins over the file")
	assert.Equal(t, 90*time.Second, s.Timeout)
	assert.Equal(t, "mpi,!slow", s.PrintFilter)
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"no profile", map[string]any{}},
		{"negative retries", map[string]any{"profile": "p", "retries": -1}},
		{"zero coef", map[string]any{"profile": "p", "time_coef": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewViper("")
			require.NoError(t, err)
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err = LoadSettings(v)
			require.Error(t, err)
			assert.True(t, errdefs.IsConfig(err))
		})
	}

	_, err := NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errdefs.IsConfig(err))
}
