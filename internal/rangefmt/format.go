// Package rangefmt turns a calendar selection into the text users paste into
// scheduling mail: the range in the primary zone, optionally preceded by the
// same range in a secondary zone.
package rangefmt

import (
	"fmt"
	"strconv"
	"time"

	"mtsched/internal/locale"
	"mtsched/internal/model"
)

// DefaultPrimaryZone is the reference zone every record is shown in.
const DefaultPrimaryZone = "Asia/Tokyo"

// OrdinalStyle selects how day-of-month suffixes are produced.
type OrdinalStyle string

const (
	// OrdinalLegacy only special-cases 1, 2 and 3 (so 11th, 21th, 31th).
	// Text produced with it matches what users have been pasting so far.
	OrdinalLegacy OrdinalStyle = "legacy"
	// OrdinalEnglish produces correct English ordinals.
	OrdinalEnglish OrdinalStyle = "english"
)

// ParseOrdinalStyle maps a config value to a style; unknown values are legacy.
func ParseOrdinalStyle(s string) OrdinalStyle {
	if OrdinalStyle(s) == OrdinalEnglish {
		return OrdinalEnglish
	}
	return OrdinalLegacy
}

// OrdinalSuffix returns the suffix for day in the given style.
func OrdinalSuffix(day int, style OrdinalStyle) string {
	if style == OrdinalEnglish {
		if d := day % 100; d >= 11 && d <= 13 {
			return "th"
		}
		switch day % 10 {
		case 1:
			return "st"
		case 2:
			return "nd"
		case 3:
			return "rd"
		}
		return "th"
	}

	switch day {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// Formatter renders normalized ranges. It is immutable and safe for
// concurrent use.
type Formatter struct {
	primary  *time.Location
	ordinals OrdinalStyle
	lang     string
	messages *locale.Catalog
	now      func() time.Time
}

// Option customizes a Formatter.
type Option func(*Formatter)

// WithOrdinals sets the ordinal suffix style.
func WithOrdinals(style OrdinalStyle) Option {
	return func(f *Formatter) { f.ordinals = style }
}

// WithLanguage sets the output language of the primary-only template.
func WithLanguage(lang string) Option {
	return func(f *Formatter) {
		if lang != "" {
			f.lang = lang
		}
	}
}

// WithMessages overrides the message catalog (tests).
func WithMessages(c *locale.Catalog) Option {
	return func(f *Formatter) { f.messages = c }
}

// WithClock sets the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// New returns a Formatter for the given primary zone. A nil primary means
// DefaultPrimaryZone.
func New(primary *time.Location, opts ...Option) (*Formatter, error) {
	if primary == nil {
		loc, err := time.LoadLocation(DefaultPrimaryZone)
		if err != nil {
			return nil, fmt.Errorf("rangefmt: load primary zone: %w", err)
		}
		primary = loc
	}
	f := &Formatter{
		primary:  primary,
		ordinals: OrdinalLegacy,
		lang:     "ja",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.messages == nil {
		c, err := locale.Default()
		if err != nil {
			return nil, fmt.Errorf("rangefmt: messages: %w", err)
		}
		f.messages = c
	}
	return f, nil
}

// Primary returns the primary zone.
func (f *Formatter) Primary() *time.Location { return f.primary }

// Format renders [start, end). secondary is only consulted when useSecondary
// is true; a nil secondary then falls back to UTC.
func (f *Formatter) Format(start, end time.Time, secondary *time.Location, useSecondary bool) (string, error) {
	pStart := start.In(f.primary)
	pEnd := end.In(f.primary)

	if !useSecondary {
		return f.messages.Render(f.lang, locale.MsgRangePrimaryOnly, map[string]any{
			"Year":  strconv.Itoa(pStart.Year()),
			"Month": pStart.Format("01"),
			"Day":   pStart.Format("02"),
			"Start": pStart.Format("15:04"),
			"End":   pEnd.Format("15:04"),
		})
	}

	if secondary == nil {
		secondary = time.UTC
	}
	sStart := pStart.In(secondary)
	sEnd := pEnd.In(secondary)
	sAbbr, _ := sStart.Zone()
	pAbbr, _ := pStart.Zone()

	return f.messages.Render(f.lang, locale.MsgRangeWithSecondary, map[string]any{
		"SecondaryDate":  f.monthDay(sStart),
		"SecondaryZone":  sAbbr,
		"SecondaryStart": sStart.Format(clock12),
		"SecondaryEnd":   sEnd.Format(clock12),
		"PrimaryDate":    f.monthDay(pStart),
		"PrimaryZone":    pAbbr,
		"PrimaryStart":   pStart.Format(clock12),
		"PrimaryEnd":     pEnd.Format(clock12),
	})
}

const clock12 = "3:04 PM"

// monthDay renders "June 1st".
func (f *Formatter) monthDay(t time.Time) string {
	return t.Format("January 2") + OrdinalSuffix(t.Day(), f.ordinals)
}

// FormatEvent normalizes a raw selection event and formats it into a record.
func (f *Formatter) FormatEvent(ev model.SelectionEvent, secondary *time.Location, useSecondary bool) (model.RangeRecord, error) {
	start, end, err := Normalize(ev)
	if err != nil {
		return model.RangeRecord{}, err
	}
	text, err := f.Format(start, end, secondary, useSecondary)
	if err != nil {
		return model.RangeRecord{}, err
	}

	rec := model.RangeRecord{
		Text:      text,
		Start:     start,
		End:       end,
		CreatedAt: f.now(),
	}
	if useSecondary && secondary != nil {
		rec.SecondaryZone = secondary.String()
	}
	return rec, nil
}
