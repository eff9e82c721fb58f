package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDatabase, EnvLogLevel, EnvLogFormat, EnvWorkers, EnvPollInterval} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sheetflow.db", cfg.Database)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 1, cfg.Executor.Workers)
	assert.Equal(t, 200*time.Millisecond, cfg.Executor.PollInterval())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sheetflow.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
database = "/var/lib/sheetflow/flows.db"

[log]
level = "DEBUG"
format = "json"

[executor]
workers = 4
poll_interval_ms = 50
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sheetflow/flows.db", cfg.Database)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Executor.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Executor.PollInterval())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sheetflow.toml")
	require.NoError(t, os.WriteFile(path, []byte("database = \"file.db\"\n[executor]\nworkers = 2\n"), 0o644))

	t.Setenv(EnvDatabase, "env.db")
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, 3, cfg.Executor.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_BadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkers, "many")

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err, "explicit missing file fails first")

	t.Chdir(t.TempDir())
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvWorkers)
}

func TestLoad_DefaultPathOptional(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("database = [\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "sheetflow.toml")
	cfg := Default()
	cfg.Database = "x.db"
	cfg.Executor.Workers = 2

	require.NoError(t, Save(path, cfg))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "[executor]"), "expected executor table, got %s", b)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
