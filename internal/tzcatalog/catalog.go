// Package tzcatalog holds the fixed list of time zones offered as secondary
// zones and formats their dropdown labels.
package tzcatalog

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	// Embed the zone database so lookups do not depend on the host's
	// /usr/share/zoneinfo.
	_ "time/tzdata"

	"mtsched/internal/model"
)

//go:embed zones.txt
var zonesFile string

// ErrUnknownZone is returned for identifiers that are not in the catalog.
var ErrUnknownZone = errors.New("unknown time zone")

// Catalog is an immutable, ordered set of time zones resolved once at startup.
type Catalog struct {
	ids  []string
	locs map[string]*time.Location
}

// Load resolves every zone listed in the embedded zones.txt. Any zone that
// fails to load is reported as an error; callers treat that as fatal.
func Load() (*Catalog, error) {
	return New(parseZoneList(zonesFile))
}

// New builds a catalog from an explicit list of identifiers, keeping the
// given order and dropping duplicates.
func New(ids []string) (*Catalog, error) {
	c := &Catalog{
		ids:  make([]string, 0, len(ids)),
		locs: make(map[string]*time.Location, len(ids)),
	}
	for _, id := range ids {
		if _, dup := c.locs[id]; dup {
			continue
		}
		loc, err := time.LoadLocation(id)
		if err != nil {
			return nil, fmt.Errorf("tzcatalog: load %q: %w", id, err)
		}
		c.ids = append(c.ids, id)
		c.locs[id] = loc
	}
	if len(c.ids) == 0 {
		return nil, errors.New("tzcatalog: no zones")
	}
	return c, nil
}

func parseZoneList(s string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Len returns the number of zones in the catalog.
func (c *Catalog) Len() int { return len(c.ids) }

// IDs returns a copy of the zone identifiers in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Default is the first zone of the catalog, which is what the dropdown
// selects when nothing else is configured.
func (c *Catalog) Default() string {
	return c.ids[0]
}

// Lookup returns the location for id. id may also be a full dropdown label.
func (c *Catalog) Lookup(id string) (*time.Location, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "(") {
		parsed, err := ParseLabel(id)
		if err != nil {
			return nil, err
		}
		id = parsed
	}
	loc, ok := c.locs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, id)
	}
	return loc, nil
}

// Resolve is like Lookup but returns the canonical identifier as well.
func (c *Catalog) Resolve(idOrLabel string) (string, *time.Location, error) {
	loc, err := c.Lookup(idOrLabel)
	if err != nil {
		return "", nil, err
	}
	return loc.String(), loc, nil
}

// Options returns the dropdown entries with labels computed at now.
func (c *Catalog) Options(now time.Time) []model.TimeZoneOption {
	out := make([]model.TimeZoneOption, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, model.TimeZoneOption{
			ID:    id,
			Label: Label(id, now.In(c.locs[id])),
		})
	}
	return out
}

// Label formats "(GMT±HHMM) <id> (<abbreviation>)" for t, which must already
// be expressed in the zone named by id.
func Label(id string, t time.Time) string {
	abbr, _ := t.Zone()
	return "(GMT" + t.Format("-0700") + ") " + id + " (" + abbr + ")"
}

// ParseLabel extracts the zone identifier from a label produced by Label.
func ParseLabel(label string) (string, error) {
	_, rest, ok := strings.Cut(label, ")")
	if !ok {
		return "", fmt.Errorf("%w: malformed label %q", ErrUnknownZone, label)
	}
	id, _, _ := strings.Cut(rest, "(")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: malformed label %q", ErrUnknownZone, label)
	}
	return id, nil
}
