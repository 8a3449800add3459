package rangefmt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mtsched/internal/model"
)

var (
	// ErrMalformedTimestamp is returned when a selection bound is not ISO-8601.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrMixedZoneInfo is returned when exactly one of start/end carries an
	// offset. There is no safe way to guess what the other one meant.
	ErrMixedZoneInfo = errors.New("start and end disagree on zone information")
	// ErrInvertedRange is returned when end is before start.
	ErrInvertedRange = errors.New("range end is before start")
)

// Layouts with an explicit offset ("Z" or ±HH:MM).
var awareLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04-0700",
}

// Layouts without zone information.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp as delivered by the calendar
// widget. aware reports whether the value carried an offset; naive values are
// returned in UTC.
func ParseTimestamp(s string) (t time.Time, aware bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("%w: empty value", ErrMalformedTimestamp)
	}
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// Normalize turns a selection event into a UTC-anchored pair.
//
//   - neither bound has zone info: both are read as UTC
//   - both have zone info: both are converted to UTC
//   - only one has zone info: ErrMixedZoneInfo
func Normalize(ev model.SelectionEvent) (start, end time.Time, err error) {
	start, startAware, err := ParseTimestamp(ev.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, endAware, err := ParseTimestamp(ev.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	if startAware != endAware {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start=%q end=%q", ErrMixedZoneInfo, ev.Start, ev.End)
	}

	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s", ErrInvertedRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}
