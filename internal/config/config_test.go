package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "terms.db", filepath.Base(cfg.Storage.Path))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "termtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: postgres
  dsn: postgres://localhost/terms
log:
  level: debug
s3:
  endpoint: http://localhost:9000
  path_style: true
metrics:
  addr: ":9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/terms", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep defaults")
	assert.True(t, cfg.S3.PathStyle)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "termtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o644))

	t.Setenv("TERMTREE_STORAGE_DRIVER", "sqlite")
	t.Setenv("TERMTREE_DB", "/tmp/override.db")
	t.Setenv("TERMTREE_S3_PATH_STYLE", "not-a-bool")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/override.db", cfg.Storage.Path)
	assert.False(t, cfg.S3.PathStyle, "invalid bool falls back")
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
