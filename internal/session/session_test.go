package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtsched/internal/model"
	"mtsched/internal/rangefmt"
	"mtsched/internal/session"
	"mtsched/internal/tzcatalog"
)

type fixture struct {
	zones *tzcatalog.Catalog
	fmt   *rangefmt.Formatter
	store *session.Store
	clock *time.Time
}

func newFixture(t *testing.T, defaults session.Settings) fixture {
	t.Helper()
	zones, err := tzcatalog.New([]string{"America/Los_Angeles", "Europe/London", "UTC"})
	require.NoError(t, err)
	f, err := rangefmt.New(nil)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := &now
	return fixture{
		zones: zones,
		fmt:   f,
		store: session.NewStore(defaults, func() time.Time { return *clock }),
		clock: clock,
	}
}

var oneHour = model.SelectionEvent{Start: "2024-06-01T10:00", End: "2024-06-01T11:00"}

func TestSelect_walksTheStateMachine(t *testing.T) {
	fx := newFixture(t, session.Settings{SecondaryZone: "America/Los_Angeles", UseSecondary: true})
	s, created := fx.store.GetOrCreate("")
	require.True(t, created)
	assert.Equal(t, session.Idle, s.State())

	rec, err := s.Select(oneHour, fx.fmt, fx.zones)
	require.NoError(t, err)
	assert.Equal(t, session.Appended, s.State())
	assert.Equal(t, "June 1st, PDT 3:00 AM-4:00 AM (June 1st, JST 7:00 PM - 8:00 PM)", rec.Text)

	// Appended accepts the next selection.
	_, err = s.Select(oneHour, fx.fmt, fx.zones)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Log().Len())
}

func TestSelect_failureReturnsToIdleAndKeepsLog(t *testing.T) {
	fx := newFixture(t, session.Settings{SecondaryZone: "UTC", UseSecondary: false})
	s, _ := fx.store.GetOrCreate("")

	_, err := s.Select(oneHour, fx.fmt, fx.zones)
	require.NoError(t, err)

	_, err = s.Select(model.SelectionEvent{Start: "2024-06-01T10:00", End: "later"}, fx.fmt, fx.zones)
	require.ErrorIs(t, err, rangefmt.ErrMalformedTimestamp)
	assert.Equal(t, session.Idle, s.State())
	assert.Equal(t, 1, s.Log().Len())

	_, err = s.Select(oneHour, fx.fmt, fx.zones)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Log().Len())
}

func TestSelect_nLinesInEventOrder(t *testing.T) {
	fx := newFixture(t, session.Settings{SecondaryZone: "UTC"})
	s, _ := fx.store.GetOrCreate("")

	events := []model.SelectionEvent{
		{Start: "2024-06-01T00:00", End: "2024-06-01T01:00"},
		{Start: "2024-06-02T00:00", End: "2024-06-02T01:00"},
		{Start: "2024-06-03T00:00", End: "2024-06-03T01:00"},
	}
	for _, ev := range events {
		_, err := s.Select(ev, fx.fmt, fx.zones)
		require.NoError(t, err)
	}

	assert.Equal(t,
		"2024年06月01日 09:00-10:00\n2024年06月02日 09:00-10:00\n2024年06月03日 09:00-10:00\n",
		s.Log().Text())
}

func TestConfigure_neverReformatsExistingRecords(t *testing.T) {
	fx := newFixture(t, session.Settings{SecondaryZone: "America/Los_Angeles", UseSecondary: false})
	s, _ := fx.store.GetOrCreate("")

	_, err := s.Select(oneHour, fx.fmt, fx.zones)
	require.NoError(t, err)
	before := s.Log().Text()

	settings, err := s.Configure("(GMT+0100) Europe/London (BST)", true, fx.zones)
	require.NoError(t, err)
	assert.Equal(t, session.Settings{SecondaryZone: "Europe/London", UseSecondary: true}, settings)
	assert.Equal(t, before, s.Log().Text())

	_, err = s.Select(oneHour, fx.fmt, fx.zones)
	require.NoError(t, err)

	recs := s.Log().Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "2024年06月01日 19:00-20:00", recs[0].Text)
	assert.Equal(t, "June 1st, BST 11:00 AM-12:00 PM (June 1st, JST 7:00 PM - 8:00 PM)", recs[1].Text)
}

func TestConfigure_unknownZone(t *testing.T) {
	fx := newFixture(t, session.Settings{SecondaryZone: "UTC"})
	s, _ := fx.store.GetOrCreate("")

	_, err := s.Configure("Asia/Pyongyang", true, fx.zones)
	require.ErrorIs(t, err, tzcatalog.ErrUnknownZone)
	assert.Equal(t, "UTC", s.Settings().SecondaryZone)
}

type failingFormatter struct{}

func (failingFormatter) FormatEvent(model.SelectionEvent, *time.Location, bool) (model.RangeRecord, error) {
	return model.RangeRecord{}, errors.New("boom")
}

func TestSelect_formatterErrorLeavesSessionIdle(t *testing.T) {
	fx := newFixture(t, session.Settings{SecondaryZone: "UTC"})
	s, _ := fx.store.GetOrCreate("")

	_, err := s.Select(oneHour, failingFormatter{}, fx.zones)
	require.EqualError(t, err, "boom")
	assert.Equal(t, session.Idle, s.State())
	assert.Equal(t, 0, s.Log().Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", session.Idle.String())
	assert.Equal(t, "range_selected", session.RangeSelected.String())
	assert.Equal(t, "formatted", session.Formatted.String())
	assert.Equal(t, "appended", session.Appended.String())
	assert.Equal(t, "state(9)", session.State(9).String())
}
