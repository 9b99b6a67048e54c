// Package testutil holds helpers shared by tests that run whole test suites:
// a thread-safe log buffer, a file tree writer, a fake compiler and the
// application harness.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/benchgrid/internal/app"
	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/plugin"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteTree writes files, keyed by slash-separated paths relative to root.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		mode := os.FileMode(0o644)
		if filepath.Ext(path) == ".sh" {
			mode = 0o755
		}
		require.NoError(t, os.WriteFile(path, []byte(content), mode))
	}
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	// Root is the temporary directory holding src/, out/ and the profile.
	Root   string
	Output string
	Report *app.Report
	Err    error
	App    *app.App
}

// Harness describes one integration run. Files are written under Root/src
// and mounted with the label "lbl"; Profile is written to Root/profile.yml.
type Harness struct {
	Files   map[string]string
	Profile string
	// Configure adjusts the settings before the app is created.
	Configure func(cfg *app.Config)
	Modules   []plugin.Module
}

// Run executes the harness with a background context.
func (h Harness) Run(t *testing.T) *HarnessResult {
	t.Helper()
	return h.RunWithContext(context.Background(), t)
}

// RunWithContext executes the harness with a caller-provided context.
func (h Harness) RunWithContext(ctx context.Context, t *testing.T) *HarnessResult {
	t.Helper()
	root := t.TempDir()
	WriteTree(t, filepath.Join(root, "src"), h.Files)
	profilePath := filepath.Join(root, "profile.yml")
	require.NoError(t, os.WriteFile(profilePath, []byte(h.Profile), 0o644))

	cfg := app.Config{
		Settings: config.Settings{
			Profile:   profilePath,
			Output:    filepath.Join(root, "out"),
			Print:     "errors",
			TimeCoef:  1.5,
			LogLevel:  "debug",
			LogFormat: "text",
		},
		Dirs: []string{"lbl:" + filepath.Join(root, "src")},
	}
	if h.Configure != nil {
		h.Configure(&cfg)
	}

	out := &SafeBuffer{}
	res := &HarnessResult{Root: root}
	appCfg, err := app.NewConfig(cfg)
	if err == nil {
		res.App, err = app.NewApp(out, appCfg, config.NewLoader(), h.Modules...)
	}
	if err == nil {
		res.Report, err = res.App.Run(ctx)
	}
	res.Err = err
	res.Output = out.String()

	if os.Getenv("BENCHGRID_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), res.Output)
	}
	return res
}
