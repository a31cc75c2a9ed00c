package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/store/sqlite"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
log_level = "info"

[paths]
log = "/var/log/refctl"
scratch = "/scratch/refctl"
software = "/opt/refctl"
results = "/data/results"
dimensions_cv = "/etc/refctl/cv.json"

[db]
database_url = "sqlite:///data/refctl.db"
run_migrations = true
max_backups = 3

[db.sqlite]
path = "/data/refctl.db"

[executor]
executor = "local-pool"

[[diagnostic_providers]]
provider = "pmp.annual_cycle"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.EqualValues(t, "info", cfg.LogLevel)
	assert.Equal(t, "/data/results", cfg.Paths.Results)
	assert.Equal(t, 3, cfg.DB.MaxBackups)
	assert.Len(t, cfg.DiagnosticProviders, 1)

	sc, ok := cfg.SqliteConfig.(*sqlite.Config)
	require.True(t, ok, "sqlite config should be *sqlite.Config")
	assert.Equal(t, "/data/refctl.db", sc.Path)

	// local-pool defaulting fills in pool_size when absent.
	assert.NotZero(t, cfg.Executor.Config["pool_size"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "this is not [valid toml")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidationMissingResultsPath(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[db]
database_url = "sqlite:///data/refctl.db"
`)
	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "paths.results")
}

func TestValidationRejectsUnknownLogLevel(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
log_level = "verbose"

[paths]
results = "/data/results"
scratch = "/scratch"

[db]
database_url = "sqlite:///data/refctl.db"
`)
	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestConfigDirEnvVarOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[paths]
results = "/data/results"
scratch = "/scratch"

[db]
database_url = "sqlite:///data/refctl.db"
`)
	t.Setenv(ConfigDirEnvVar, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/results", cfg.Paths.Results)
}
