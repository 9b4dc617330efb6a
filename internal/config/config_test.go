package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tingo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPath, cfg.Database.Path)
	assert.False(t, cfg.Database.InMemory)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
database:
  path: /tmp/app.db
  debug: true
models: models.cue
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/app.db", cfg.Database.Path)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, "models.cue", cfg.Models)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "database:\n  path: /tmp/file.db\n")
	t.Setenv("TINGO_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("TINGO_LOGGING_LEVEL", "info")
	t.Setenv("TINGO_DATABASE_MEMORY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Database.InMemory)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "database: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("TINGO_LOGGING_FORMAT", "xml")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Format")
}

func TestValidate_PathOrMemory(t *testing.T) {
	cfg := Default()
	cfg.Database.Path = ""
	assert.Error(t, Validate(cfg))

	cfg.Database.InMemory = true
	assert.NoError(t, Validate(cfg))
}
