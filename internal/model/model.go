package model

import "time"

// TimeZoneOption is one entry of the secondary time zone dropdown.
// Label is computed for a specific instant (offsets change with DST), so it is
// a snapshot and must never be persisted.
type TimeZoneOption struct {
	ID    string `json:"id"`    // IANA identifier, e.g. "Asia/Tokyo"
	Label string `json:"label"` // "(GMT+0900) Asia/Tokyo (JST)"
}

// SelectionEvent is the raw start/end pair delivered by the calendar widget
// when the user drags over a range. Both values are ISO-8601 strings and may
// or may not carry an offset.
type SelectionEvent struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RangeRecord is a single formatted line in a session's accumulated text.
// Records are immutable once created; changing the secondary zone later only
// affects records created afterwards.
type RangeRecord struct {
	Text string

	// Start / End are the normalized UTC bounds the text was produced from.
	Start time.Time
	End   time.Time

	// SecondaryZone is the zone used for Text, empty if the record was
	// formatted in the primary zone only.
	SecondaryZone string

	CreatedAt time.Time
}

// BusyBlock is one concrete occurrence of an event from a subscribed ICS
// feed, after recurrence expansion, shown behind the selection calendar.
type BusyBlock struct {
	SourceID string `json:"source_id"`
	UID      string `json:"uid"`

	// InstanceKey identifies one occurrence of a recurring event.
	InstanceKey string `json:"instance_key"`

	Summary string `json:"summary"`
	AllDay  bool   `json:"all_day"`

	// Start / End are in the primary zone.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
