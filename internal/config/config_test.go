package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvDBPath, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Retrieval.TimeoutSeconds)
	assert.Equal(t, 128, cfg.Retrieval.CacheSize)
	assert.Equal(t, "alternating", cfg.Retrieval.BiasMode)
	assert.True(t, cfg.Retrieval.SelfCheck)
	assert.False(t, cfg.Retrieval.RerankEnabled)
	assert.True(t, cfg.Learner.Enabled)
	assert.Equal(t, 256, cfg.Learner.QueueSize)
	assert.False(t, cfg.Generation.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	path := writeConfig(t, `
database:
  path: /data/snapshots.db
embedding:
  provider: local
retrieval:
  timeout_seconds: 10
  bias_mode: bookends
  self_check: false
generation:
  enabled: true
  base_url: http://localhost:11434/v1
  model: qwen2.5-coder
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/snapshots.db", cfg.Database.Path)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 10, cfg.Retrieval.TimeoutSeconds)
	assert.Equal(t, "bookends", cfg.Retrieval.BiasMode)
	assert.False(t, cfg.Retrieval.SelfCheck)
	assert.True(t, cfg.Generation.Enabled)
	assert.Equal(t, "qwen2.5-coder", cfg.Generation.Model)

	// Untouched sections keep their defaults
	assert.Equal(t, 20, cfg.Retrieval.StrategyLimit)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  path: /from/file.db\n")
	t.Setenv(EnvDBPath, "/from/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.Database.Path)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  timeout_seconds: 7\n")
	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvDBPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retrieval.TimeoutSeconds)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "retrieval:\n  timeout_seconds: -1\n"))
	assert.ErrorContains(t, err, "timeout_seconds")

	_, err = Load(writeConfig(t, "retrieval:\n  bias_mode: shuffle\n"))
	assert.ErrorContains(t, err, "bias_mode")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "retrieval: [not a map]\n"))
	assert.ErrorContains(t, err, "parse config")
}

func TestDatabasePathDefault(t *testing.T) {
	cfg := Default()
	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Contains(t, path, ".goretrieve")

	cfg.Database.Path = "/explicit.db"
	path, err = cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/explicit.db", path)
}
