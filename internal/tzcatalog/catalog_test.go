package tzcatalog_test

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtsched/internal/tzcatalog"
)

func TestLoad_embeddedListResolves(t *testing.T) {
	c, err := tzcatalog.Load()
	require.NoError(t, err)

	require.Greater(t, c.Len(), 100)
	assert.Equal(t, "Africa/Abidjan", c.Default())
	assert.Contains(t, c.IDs(), "Asia/Tokyo")
	assert.Contains(t, c.IDs(), "UTC")
}

func TestLoad_coversCommonZonesAndAliases(t *testing.T) {
	c, err := tzcatalog.Load()
	require.NoError(t, err)

	require.GreaterOrEqual(t, c.Len(), 430)
	for _, id := range []string{
		"Europe/Tallinn", "Europe/Riga", "Europe/Vilnius",
		"Asia/Muscat", "Asia/Phnom_Penh", "America/Detroit",
		"Europe/Kiev", "Europe/Kyiv",
		"US/Eastern", "US/Pacific", "Canada/Newfoundland",
		"GMT", "UTC",
	} {
		got, _, err := c.Resolve(id)
		if assert.NoError(t, err, id) {
			assert.Equal(t, id, got)
		}
	}

	ids := c.IDs()
	assert.True(t, sort.StringsAreSorted(ids), "dropdown order is alphabetical")
}

func TestNew_unknownZoneFails(t *testing.T) {
	_, err := tzcatalog.New([]string{"Asia/Tokyo", "Mars/Olympus_Mons"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus_Mons")
}

func TestNew_dropsDuplicates(t *testing.T) {
	c, err := tzcatalog.New([]string{"UTC", "Asia/Tokyo", "UTC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"UTC", "Asia/Tokyo"}, c.IDs())
}

func TestOptions_labelsAreSnapshotsOfTheInstant(t *testing.T) {
	c, err := tzcatalog.New([]string{"Asia/Tokyo", "America/New_York", "UTC", "Asia/Kolkata"})
	require.NoError(t, err)

	winter := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2024, time.July, 15, 12, 0, 0, 0, time.UTC)

	w := c.Options(winter)
	require.Len(t, w, 4)
	assert.Equal(t, "Asia/Tokyo", w[0].ID)
	assert.Equal(t, "(GMT+0900) Asia/Tokyo (JST)", w[0].Label)
	assert.Equal(t, "(GMT-0500) America/New_York (EST)", w[1].Label)
	assert.Equal(t, "(GMT+0000) UTC (UTC)", w[2].Label)
	assert.Equal(t, "(GMT+0530) Asia/Kolkata (IST)", w[3].Label)

	s := c.Options(summer)
	assert.Equal(t, "(GMT-0400) America/New_York (EDT)", s[1].Label)
}

func TestParseLabel(t *testing.T) {
	id, err := tzcatalog.ParseLabel("(GMT-0700) America/Los_Angeles (PDT)")
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", id)

	_, err = tzcatalog.ParseLabel("America/Los_Angeles")
	require.ErrorIs(t, err, tzcatalog.ErrUnknownZone)
}

func TestLookup(t *testing.T) {
	c, err := tzcatalog.New([]string{"Europe/London", "Asia/Tokyo"})
	require.NoError(t, err)

	loc, err := c.Lookup("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())

	loc, err = c.Lookup("(GMT+0100) Europe/London (BST)")
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())

	_, err = c.Lookup("America/Denver")
	require.ErrorIs(t, err, tzcatalog.ErrUnknownZone)

	id, _, err := c.Resolve("(GMT+0900) Asia/Tokyo (JST)")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", id)
}
