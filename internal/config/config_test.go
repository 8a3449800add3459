package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtsched/internal/config"
)

// TestLoad_firstRunWritesDefaults verifies that a missing file is created
// with defaults and 0600 permissions.
func TestLoad_firstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListen, cfg.Listen)
	assert.Equal(t, "Asia/Tokyo", cfg.PrimaryTimezone)
	assert.True(t, cfg.SecondaryEnabled())
	assert.Equal(t, "timeGridWeek", cfg.Calendar.InitialView)
	assert.Equal(t, "05:00:00", cfg.Calendar.SlotMinTime)
	assert.Equal(t, "24:00:00", cfg.Calendar.SlotMaxTime)
	require.NotNil(t, cfg.Calendar.UnselectAuto)
	assert.False(t, *cfg.Calendar.UnselectAuto)
	require.NotNil(t, cfg.Calendar.Selectable)
	assert.True(t, *cfg.Calendar.Selectable)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

// TestLoad_partialFileIsNormalized verifies that omitted keys take defaults
// while explicit values, including an explicit false, are kept.
func TestLoad_partialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
secondary_timezone: America/Los_Angeles
use_secondary: false
ordinals: english
language: fr
busy:
  ics:
    - id: work
      url: https://calendar.example.com/work.ics
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "America/Los_Angeles", cfg.SecondaryTimezone)
	assert.False(t, cfg.SecondaryEnabled())
	assert.Equal(t, "english", cfg.Ordinals)
	assert.Equal(t, "ja", cfg.Language)
	assert.Equal(t, config.DefaultBusyRefresh, cfg.Busy.Refresh)
	assert.Equal(t, config.DefaultBusyHorizonDays, cfg.Busy.HorizonDays)
	require.Len(t, cfg.Busy.ICS, 1)
	assert.Equal(t, "work", cfg.Busy.ICS[0].ID)
	assert.Equal(t, config.DefaultCalendar(), cfg.Calendar)
}

func TestLoad_calendarFalseFlagsSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
calendar:
  selectable: false
  select_mirror: false
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Calendar.Selectable)
	require.NotNil(t, cfg.Calendar.SelectMirror)
	require.NotNil(t, cfg.Calendar.UnselectAuto)
	assert.False(t, *cfg.Calendar.Selectable)
	assert.False(t, *cfg.Calendar.SelectMirror)
	assert.False(t, *cfg.Calendar.UnselectAuto)
	assert.Equal(t, "timeGridWeek", cfg.Calendar.InitialView)
	assert.Equal(t, "05:00:00", cfg.Calendar.SlotMinTime)
}

func TestNormalize_busyHorizonCoversMonthView(t *testing.T) {
	for _, days := range []int{0, -3, 28, 41} {
		cfg := &config.Config{Busy: config.BusyConfig{HorizonDays: days}}
		cfg.Normalize()
		assert.Equal(t, 42, cfg.Busy.HorizonDays, days)
	}

	cfg := &config.Config{Busy: config.BusyConfig{HorizonDays: 90}}
	cfg.Normalize()
	assert.Equal(t, 90, cfg.Busy.HorizonDays)
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_emptyPath(t *testing.T) {
	_, err := config.Load("")
	require.Error(t, err)
}

func TestApplyEnv_overrides(t *testing.T) {
	t.Setenv(config.EnvListen, "0.0.0.0:8081")
	t.Setenv(config.EnvPrimaryTimezone, "Asia/Seoul")
	t.Setenv(config.EnvSecondaryTimezone, "Europe/Paris")
	t.Setenv(config.EnvLanguage, "en")
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvCORSOrigins, "https://a.example.com, https://b.example.com,")

	cfg := config.DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "0.0.0.0:8081", cfg.Listen)
	assert.Equal(t, "Asia/Seoul", cfg.PrimaryTimezone)
	assert.Equal(t, "Europe/Paris", cfg.SecondaryTimezone)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}

func TestLoadDotEnv_doesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MTSCHED_LISTEN=from-file:1\nMTSCHED_LOG_LEVEL=warn\n"), 0o600))

	t.Setenv(config.EnvListen, "from-env:2")
	t.Setenv(config.EnvLogLevel, "")
	require.NoError(t, os.Unsetenv(config.EnvLogLevel))

	require.NoError(t, config.LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "from-env:2", os.Getenv(config.EnvListen))
	assert.Equal(t, "warn", os.Getenv(config.EnvLogLevel))
}
