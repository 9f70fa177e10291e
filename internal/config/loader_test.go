package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MERLIN_FOLDER", filepath.Join(dir, "nope"))

	l := NewLoader()
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Tiers.LocalEnabled)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.Tiers.LocalModel)
	assert.Equal(t, 3, cfg.Tiers.MaxRetries)
	assert.Equal(t, 0.8, cfg.Validation.Threshold)
	assert.Equal(t, 4, cfg.Execution.MaxConcurrentTasks)
	assert.True(t, cfg.Workspace.EnableSnapshots)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	merlinDir := filepath.Join(dir, ".merlin")
	require.NoError(t, os.MkdirAll(merlinDir, 0o750))

	toml := `
[tiers]
local_enabled = false
max_retries = 7

[execution]
max_concurrent_tasks = 2
`
	require.NoError(t, os.WriteFile(filepath.Join(merlinDir, "config.toml"), []byte(toml), 0o600))
	t.Setenv("MERLIN_FOLDER", merlinDir)

	l := NewLoader()
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.False(t, cfg.Tiers.LocalEnabled)
	assert.Equal(t, 7, cfg.Tiers.MaxRetries)
	assert.Equal(t, 2, cfg.Execution.MaxConcurrentTasks)
	// untouched sections keep their defaults
	assert.True(t, cfg.Validation.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	merlinDir := filepath.Join(dir, ".merlin")
	require.NoError(t, os.MkdirAll(merlinDir, 0o750))
	toml := "[tiers]\nmax_retries = 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(merlinDir, "config.toml"), []byte(toml), 0o600))
	t.Setenv("MERLIN_FOLDER", merlinDir)
	t.Setenv("MERLIN_TIERS_MAX_RETRIES", "9")

	l := NewLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Tiers.MaxRetries)
}

func TestLoad_WorkspaceRootResolvedAbsolute(t *testing.T) {
	t.Setenv("MERLIN_FOLDER", filepath.Join(t.TempDir(), "missing"))
	l := NewLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Workspace.RootPath))
}

func TestMerlinDir_HonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MERLIN_FOLDER", dir)
	l := NewLoader()
	_, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, dir, l.MerlinDir())
}
