package busy

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "mtsched/internal/log"
)

// Event is a VEVENT reduced to what the overlay needs. Recurrences are kept
// as raw RRULE text and expanded on demand.
type Event struct {
	Source Source

	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on VEVENTs that override one instance of a
	// recurring event.
	RecurrenceID *time.Time
	Cancelled    bool
}

// Transparent events (TRANSP:TRANSPARENT) do not block time.
func transparent(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentProperty("TRANSP"))
	return p != nil && strings.EqualFold(p.Value, "TRANSPARENT")
}

func cancelled(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyStatus)
	return p != nil && strings.EqualFold(p.Value, "CANCELLED")
}

// Parse decodes one ICS body. Broken VEVENTs are logged and skipped.
func Parse(src Source, body []byte) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
		return nil, errors.New("body is not an iCalendar document")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, ve := range cal.Events() {
		if transparent(ve) {
			continue
		}
		ev, err := parseEvent(src, ve)
		if err != nil {
			appLog.Warn("busy feed: skipping VEVENT", "id", src.ID, "err", err)
			continue
		}
		ev.Cancelled = cancelled(ve)
		// A cancelled series or single event blocks nothing; a cancelled
		// override is kept so expansion can drop that one instance.
		if ev.Cancelled && ev.RecurrenceID == nil {
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("busy feed parsed", "id", src.ID, "events", len(events))
	return events, nil
}

func parseEvent(src Source, ve *ical.VEvent) (Event, error) {
	ev := Event{Source: src}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, err
	}
	ev.Start = start

	if end, err := ve.GetEndAt(); err == nil && !end.Before(start) {
		ev.End = end
	} else if ev.AllDay {
		ev.End = start.AddDate(0, 0, 1)
	} else {
		ev.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := propLocation(p, start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, propLocation(p, start.Location())); err == nil {
			ev.RecurrenceID = &t
		}
	}

	return ev, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// propLocation resolves a TZID parameter, falling back to def.
func propLocation(p *ical.IANAProperty, def *time.Location) *time.Location {
	if tz, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	if def == nil {
		return time.UTC
	}
	return def
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
