// Package session tracks one browser's interaction with the scheduler:
// the chosen secondary zone, the include-secondary flag and the accumulated
// log of formatted ranges.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"mtsched/internal/model"
	"mtsched/internal/rangelog"
)

// State is the position of a session in the selection lifecycle.
type State int

const (
	Idle State = iota
	RangeSelected
	Formatted
	Appended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RangeSelected:
		return "range_selected"
	case Formatted:
		return "formatted"
	case Appended:
		return "appended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when an event arrives in a state that
// cannot accept it.
var ErrInvalidTransition = errors.New("invalid session transition")

// allowed lists the legal transitions.
var allowed = map[State][]State{
	Idle:          {RangeSelected},
	RangeSelected: {Formatted, Idle},
	Formatted:     {Appended, Idle},
	Appended:      {RangeSelected},
}

// ZoneResolver maps an identifier (or dropdown label) to a location.
type ZoneResolver interface {
	Resolve(idOrLabel string) (string, *time.Location, error)
}

// RecordFormatter turns a raw selection into an immutable record.
type RecordFormatter interface {
	FormatEvent(ev model.SelectionEvent, secondary *time.Location, useSecondary bool) (model.RangeRecord, error)
}

// Settings are the user-controlled inputs applied to future selections.
type Settings struct {
	SecondaryZone string
	UseSecondary  bool
}

// Session is safe for concurrent use.
type Session struct {
	id  string
	log *rangelog.Log

	mu       sync.Mutex
	state    State
	settings Settings
	lastSeen time.Time
}

func newSession(id string, settings Settings, now time.Time) *Session {
	return &Session{
		id:       id,
		log:      rangelog.New(),
		state:    Idle,
		settings: settings,
		lastSeen: now,
	}
}

func (s *Session) ID() string { return s.id }

// Log returns the session's append-only log.
func (s *Session) Log() *rangelog.Log { return s.log }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// LastSeen reports the last time the session handled a request.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// transition must be called with s.mu held.
func (s *Session) transition(to State) error {
	for _, next := range allowed[s.state] {
		if next == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
}

// Configure changes the settings used for subsequent selections. The zone is
// validated against zones; records already in the log are left untouched.
func (s *Session) Configure(secondary string, useSecondary bool, zones ZoneResolver) (Settings, error) {
	id, _, err := zones.Resolve(secondary)
	if err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = Settings{SecondaryZone: id, UseSecondary: useSecondary}
	return s.settings, nil
}

// Select drives one selection event through
// RangeSelected -> Formatted -> Appended. On failure the session returns to
// Idle and the log is unchanged.
func (s *Session) Select(ev model.SelectionEvent, f RecordFormatter, zones ZoneResolver) (model.RangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(RangeSelected); err != nil {
		return model.RangeRecord{}, err
	}

	var secondary *time.Location
	if s.settings.UseSecondary {
		_, loc, err := zones.Resolve(s.settings.SecondaryZone)
		if err != nil {
			s.state = Idle
			return model.RangeRecord{}, err
		}
		secondary = loc
	}

	rec, err := f.FormatEvent(ev, secondary, s.settings.UseSecondary)
	if err != nil {
		s.state = Idle
		return model.RangeRecord{}, err
	}
	if err := s.transition(Formatted); err != nil {
		return model.RangeRecord{}, err
	}

	s.log.Append(rec)
	if err := s.transition(Appended); err != nil {
		return model.RangeRecord{}, err
	}
	return rec, nil
}
