package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("HOURS_TEST_API_KEY", "s3cret")
	dir := t.TempDir()
	path := writeFile(t, "config.yaml", `
database:
  path: `+filepath.Join(dir, "db", "hours.db")+`
api:
  enabled: true
  api_key: ${HOURS_TEST_API_KEY}
engine:
  timezone: Europe/Berlin
  lookahead_days: 7
  default_schedule:
    mon: {open: "10:00", close: "16:00"}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.API.APIKey)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, DefaultLocationsPath, cfg.LocationsConfigPath)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL())
	assert.Equal(t, 30*time.Second, cfg.LocationsReloadInterval())
	assert.DirExists(t, filepath.Join(dir, "db"))

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", ec.Location.String())
	assert.Equal(t, 7, ec.LookaheadDays)
	assert.Equal(t, "16:00", ec.DefaultSchedule.Mon.Close)
	assert.Nil(t, ec.DefaultSchedule.Tue)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad timezone", body: "engine:\n  timezone: Mars/Olympus\n"},
		{name: "bad default schedule", body: "engine:\n  default_schedule:\n    mon: {open: \"9am\", close: \"17:00\"}\n"},
		{name: "bad yaml", body: "engine: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "database:\n  path: " + filepath.Join(t.TempDir(), "x.db") + "\n" + tt.body
			_, err := Load(writeFile(t, "config.yaml", body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEngineConfig_Defaults(t *testing.T) {
	var cfg Config
	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ec.Location)
	assert.Equal(t, 14, ec.LookaheadDays)
	assert.Equal(t, "09:00", ec.DefaultSchedule.Mon.Open)
}
