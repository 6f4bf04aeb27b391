package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	settings, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, uint(10), settings.Duplicates.Threshold)
	assert.Equal(t, 20, settings.Search.Limit)
	assert.Equal(t, 30, settings.Trash.MaxAgeDays)
	assert.Equal(t, "info", settings.Log.Level)
	assert.NotEmpty(t, settings.Database)
	assert.NotEmpty(t, settings.TrashDir)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photofinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /data/photos.db
duplicates:
  threshold: 6
search:
  model: clip-vit-b32
  limit: 5
log:
  level: debug
`), 0o644))
	t.Setenv("PHOTOFINDER_SEARCH_LIMIT", "50")
	t.Setenv("PHOTOFINDER_TRASH_MAXAGEDAYS", "7")

	settings, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/data/photos.db", settings.Database)
	assert.Equal(t, uint(6), settings.Duplicates.Threshold)
	assert.Equal(t, "clip-vit-b32", settings.Search.Model)
	assert.Equal(t, 50, settings.Search.Limit, "environment overrides the file")
	assert.Equal(t, 7, settings.Trash.MaxAgeDays)
	assert.Equal(t, "debug", settings.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateSettings(t *testing.T) {
	isolate(t)
	v := New()
	v.Set("search.limit", 0)
	v.Set("trash.maxagedays", -1)
	v.Set("log.level", "loud")

	_, err := Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.limit")
	assert.Contains(t, err.Error(), "trash.maxagedays")
	assert.Contains(t, err.Error(), "log.level")
}
