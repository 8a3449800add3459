package busy

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "mtsched/internal/log"
	"mtsched/internal/model"
)

const defaultMaxPerEvent = 5000

// Window bounds an expansion.
type Window struct {
	Start time.Time
	End   time.Time

	// Location is the zone blocks are returned in. Nil means UTC.
	Location *time.Location

	// MaxPerEvent caps occurrences of a single recurring event.
	MaxPerEvent int
}

// Expand turns events into concrete busy blocks overlapping the window,
// applying RRULE, EXDATE and RECURRENCE-ID overrides. The result is sorted by
// start time.
func Expand(events []Event, w Window) ([]model.BusyBlock, error) {
	if w.End.Before(w.Start) {
		return nil, errors.New("busy: window end is before start")
	}
	if w.Location == nil {
		w.Location = time.UTC
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxPerEvent
	}

	series := make(map[string][]Event)
	overrides := make(map[string][]Event)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			series[ev.UID] = append(series[ev.UID], ev)
		}
	}

	var out []model.BusyBlock
	for uid, evs := range series {
		for _, ev := range evs {
			if ev.RRule == "" {
				out = append(out, expandSingle(ev, overrides[uid], w)...)
				continue
			}
			blocks, truncated := expandRecurring(ev, overrides[uid], w)
			if truncated {
				appLog.Warn("busy: occurrences truncated", "uid", uid, "cap", w.MaxPerEvent)
			}
			out = append(out, blocks...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].UID < out[j].UID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func expandSingle(ev Event, overrides []Event, w Window) []model.BusyBlock {
	start, end, src := ev.Start, ev.End, ev
	if o, ok := findOverride(overrides, start); ok {
		if o.Cancelled {
			return nil
		}
		start, end, src = o.Start, o.End, o
	}
	if !overlaps(start, end, w.Start, w.End) {
		return nil
	}
	return []model.BusyBlock{block(src, start, end, w.Location)}
}

func expandRecurring(ev Event, overrides []Event, w Window) ([]model.BusyBlock, bool) {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Warn("busy: bad RRULE", "uid", ev.UID, "rrule", ev.RRule, "err", err)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event duration so occurrences that started
	// before the window but are still running are included.
	dur := ev.End.Sub(ev.Start)
	from := w.Start.Add(-dur).In(ev.Start.Location())
	to := w.End.In(ev.Start.Location())

	starts := set.Between(from, to, true)
	truncated := false
	if len(starts) > w.MaxPerEvent {
		starts = starts[:w.MaxPerEvent]
		truncated = true
	}

	out := make([]model.BusyBlock, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			// Keep all-day instances on calendar-day boundaries across DST.
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, int(dur.Hours()/24+0.5))
		}

		src := ev
		if o, ok := findOverride(overrides, s); ok {
			if o.Cancelled {
				continue
			}
			s, e, src = o.Start, o.End, o
		}
		if !overlaps(s, e, w.Start, w.End) {
			continue
		}
		out = append(out, block(src, s, e, w.Location))
	}
	return out, truncated
}

func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

func block(ev Event, start, end time.Time, loc *time.Location) model.BusyBlock {
	s := start.In(loc)
	return model.BusyBlock{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: s.Format(time.RFC3339),
		Summary:     ev.Summary,
		AllDay:      ev.AllDay,
		Start:       s,
		End:         end.In(loc),
	}
}

// overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd).
// Zero-length events count when they fall inside the window.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
