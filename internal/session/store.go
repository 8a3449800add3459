package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "mtsched/internal/log"
)

// Store keeps sessions in memory. Nothing survives a restart.
type Store struct {
	defaults Settings
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty store. defaults seeds new sessions' settings.
func NewStore(defaults Settings, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		defaults: defaults,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, touching its activity time.
func (st *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		s.touch(st.now())
	}
	return s, ok
}

// GetOrCreate returns the session for id, or a new one with a fresh id when
// id is empty or unknown. created reports whether a session was made.
func (st *Store) GetOrCreate(id string) (s *Session, created bool) {
	if s, ok := st.Get(id); ok {
		return s, false
	}

	s = newSession(uuid.NewString(), st.defaults, st.now())
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()

	appLog.Debug("session created", "session", s.id)
	return s, true
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than idle and returns how many were
// removed.
func (st *Store) Sweep(idle time.Duration) int {
	cutoff := st.now().Add(-idle)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		appLog.Info("sessions swept", "removed", removed, "remaining", len(st.sessions))
	}
	return removed
}
