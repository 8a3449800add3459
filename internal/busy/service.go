// Package busy loads events from subscribed ICS feeds so the calendar can
// show existing commitments behind the selection grid.
package busy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "mtsched/internal/log"
	"mtsched/internal/model"
)

// ErrWindowTooLarge is returned when a caller asks for more days than the
// configured horizon.
var ErrWindowTooLarge = errors.New("busy: window exceeds horizon")

// FetchObserver is notified of each feed fetch outcome ("ok", "cached",
// "error"). Used for metrics.
type FetchObserver func(result string)

// Service keeps the last parsed snapshot of all feeds. Refresh replaces the
// snapshot; readers never block on the network.
type Service struct {
	fetcher  *Fetcher
	sources  []Source
	horizon  time.Duration
	observer FetchObserver

	mu        sync.RWMutex
	events    []Event
	updatedAt time.Time
}

// NewService returns a service for sources. horizonDays bounds the width of
// a single Blocks request.
func NewService(fetcher *Fetcher, sources []Source, horizonDays int, observer FetchObserver) *Service {
	if observer == nil {
		observer = func(string) {}
	}
	return &Service{
		fetcher:  fetcher,
		sources:  sources,
		horizon:  time.Duration(horizonDays) * 24 * time.Hour,
		observer: observer,
	}
}

// Enabled reports whether any feed is configured.
func (s *Service) Enabled() bool { return len(s.sources) > 0 }

// UpdatedAt is the time of the last successful refresh.
func (s *Service) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Refresh fetches and parses every feed. Sources that fail to fetch or parse
// keep their events from the previous snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	results, fetchErrs := s.fetcher.FetchAll(ctx, s.sources)
	for range fetchErrs {
		s.observer("error")
	}

	fresh := make(map[string][]Event, len(results))
	var errs []error
	errs = append(errs, fetchErrs...)
	for _, res := range results {
		if res.FromCache {
			s.observer("cached")
		} else {
			s.observer("ok")
		}
		evs, err := Parse(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: parse: %w", res.Source.ID, err))
			continue
		}
		fresh[res.Source.ID] = evs
	}

	s.mu.Lock()
	merged := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if _, replaced := fresh[ev.Source.ID]; !replaced {
			merged = append(merged, ev)
		}
	}
	for _, evs := range fresh {
		merged = append(merged, evs...)
	}
	s.events = merged
	if len(fresh) > 0 {
		s.updatedAt = time.Now()
	}
	s.mu.Unlock()

	appLog.Info("busy feeds refreshed", "sources", len(s.sources), "ok", len(fresh), "events", len(merged))
	return errors.Join(errs...)
}

// Blocks expands the current snapshot over [start, end) in loc.
func (s *Service) Blocks(start, end time.Time, loc *time.Location) ([]model.BusyBlock, error) {
	if s.horizon > 0 && end.Sub(start) > s.horizon {
		return nil, fmt.Errorf("%w: %s", ErrWindowTooLarge, end.Sub(start))
	}

	s.mu.RLock()
	events := s.events
	s.mu.RUnlock()

	blocks, err := Expand(events, Window{Start: start, End: end, Location: loc})
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []model.BusyBlock{}
	}
	return blocks, nil
}
