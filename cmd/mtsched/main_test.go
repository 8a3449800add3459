package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtsched/internal/busy"
	"mtsched/internal/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cli := NewCLI()
	var out bytes.Buffer
	cli.root.SetOut(&out)
	cli.root.SetArgs(append([]string{
		"--config", filepath.Join(t.TempDir(), "config.yaml"),
		"--env-file", "",
	}, args...))
	err := cli.root.Execute()
	return out.String(), err
}

func TestFormatCommand_primaryOnly(t *testing.T) {
	out, err := runCLI(t, "format", "--use-secondary=false", "2024-06-01T10:00:00", "2024-06-01T11:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024年06月01日 19:00-20:00\n", out)
}

func TestFormatCommand_secondary(t *testing.T) {
	out, err := runCLI(t, "format", "--secondary", "America/New_York", "2024-01-02T00:00:00Z", "2024-01-02T01:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "January 1st, EST 7:00 PM-8:30 PM (January 2nd, JST 9:00 AM - 10:30 AM)\n", out)
}

func TestFormatCommand_rejectsInvertedRange(t *testing.T) {
	_, err := runCLI(t, "format", "2024-06-01T11:00:00", "2024-06-01T10:00:00")
	require.Error(t, err)
}

func TestZonesCommand(t *testing.T) {
	out, err := runCLI(t, "zones", "--at", "2024-01-15T00:00:00Z")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "(GMT+0000) Africa/Abidjan (GMT)", lines[0])
	assert.Contains(t, lines, "(GMT-0500) America/New_York (EST)")
}

func TestBusySources(t *testing.T) {
	got := busySources([]config.ICSConfig{
		{ID: "work", URL: "https://example.com/work.ics"},
		{Name: "Family", URL: "https://example.com/family.ics"},
		{URL: "https://example.com/other.ics"},
		{ID: "empty"},
	})
	assert.Equal(t, []busy.Source{
		{ID: "work", URL: "https://example.com/work.ics"},
		{ID: "Family", URL: "https://example.com/family.ics"},
		{ID: "https://example.com/other.ics", URL: "https://example.com/other.ics"},
	}, got)
}

func TestCheckSchedules(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, checkSchedules(cfg))

	cfg.SessionSweep = "every ten minutes"
	err := checkSchedules(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_sweep")

	cfg = config.DefaultConfig()
	cfg.Busy.Refresh = "* * * * * *"
	require.NoError(t, checkSchedules(cfg), "refresh is unused without feeds")

	cfg.Busy.ICS = []config.ICSConfig{{ID: "work", URL: "https://example.com/work.ics"}}
	err = checkSchedules(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy.refresh")
}
