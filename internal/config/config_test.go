package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2018, cfg.Census.Year)
	assert.Equal(t, "36", cfg.Census.State)
	assert.Equal(t, []string{"005", "047", "061", "081", "085"}, cfg.Census.Counties)
	assert.Equal(t, "https://api.census.gov/data", cfg.Census.BaseURL)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "icemapper.db", cfg.Store.Path)
	assert.Equal(t, "out/tract_indices.csv", cfg.Export.CSVPath)
	assert.Equal(t, "icemapper/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Fetch.RatePerSec, 0.001)
	assert.Equal(t, 3, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
census:
  year: 2022
  state: "06"
  counties: ["037"]
store:
  driver: postgres
  database_url: postgres://localhost/icemapper
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2022, cfg.Census.Year)
	assert.Equal(t, "06", cfg.Census.State)
	assert.Equal(t, []string{"037"}, cfg.Census.Counties)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "icemapper/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
census:
  year: 2019
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ICEMAPPER_CENSUS_YEAR", "2021")
	t.Setenv("ICEMAPPER_CENSUS_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2021, cfg.Census.Year)
	assert.Equal(t, "test-key", cfg.Census.APIKey)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
