package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"mtsched/internal/busy"
	appLog "mtsched/internal/log"
	"mtsched/internal/model"
	"mtsched/internal/rangefmt"
	"mtsched/internal/session"
	"mtsched/internal/tzcatalog"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// defaultBusyDays is the /api/busy window when the caller omits end.
const defaultBusyDays = 7

type timezonesResponse struct {
	Default string                 `json:"default"`
	Options []model.TimeZoneOption `json:"options"`
}

// handleTimezones returns the dropdown options with labels computed now.
func (s *Server) handleTimezones(w http.ResponseWriter, _ *http.Request) {
	def := s.cfg.SecondaryTimezone
	if def == "" {
		def = s.deps.Zones.Default()
	}
	writeJSON(w, http.StatusOK, timezonesResponse{
		Default: def,
		Options: s.deps.Zones.Options(s.deps.Now()),
	})
}

func (s *Server) handleCalendarOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Calendar)
}

type labelsResponse struct {
	Lang   string            `json:"lang"`
	Labels map[string]string `json:"labels"`
}

// handleLabels localizes UI captions by Accept-Language.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	lang := s.deps.Messages.Match(r.Header.Get("Accept-Language"))
	labels, err := s.deps.Messages.Labels(lang)
	if err != nil {
		appLog.Error("labels render failed", err, "lang", lang)
		writeError(w, http.StatusInternalServerError, "failed to render labels")
		return
	}
	writeJSON(w, http.StatusOK, labelsResponse{Lang: lang, Labels: labels})
}

// recordDTO is a JSON-friendly view of a RangeRecord.
type recordDTO struct {
	Text              string    `json:"text"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	SecondaryTimezone string    `json:"secondary_timezone,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func toRecordDTO(r model.RangeRecord) recordDTO {
	return recordDTO{
		Text:              r.Text,
		Start:             r.Start,
		End:               r.End,
		SecondaryTimezone: r.SecondaryZone,
		CreatedAt:         r.CreatedAt,
	}
}

type sessionResponse struct {
	SecondaryTimezone string      `json:"secondary_timezone"`
	SecondaryLabel    string      `json:"secondary_label"`
	UseSecondary      bool        `json:"use_secondary"`
	State             string      `json:"state"`
	Records           []recordDTO `json:"records"`
	Text              string      `json:"text"`
}

func (s *Server) sessionView(sess *session.Session) sessionResponse {
	settings := sess.Settings()
	resp := sessionResponse{
		SecondaryTimezone: settings.SecondaryZone,
		UseSecondary:      settings.UseSecondary,
		State:             sess.State().String(),
		Records:           []recordDTO{},
		Text:              sess.Log().Text(),
	}
	if loc, err := s.deps.Zones.Lookup(settings.SecondaryZone); err == nil {
		resp.SecondaryLabel = tzcatalog.Label(settings.SecondaryZone, s.deps.Now().In(loc))
	}
	for _, rec := range sess.Log().Records() {
		resp.Records = append(resp.Records, toRecordDTO(rec))
	}
	return resp
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionView(s.session(w, r)))
}

type settingsRequest struct {
	SecondaryTimezone string `json:"secondary_timezone"`
	UseSecondary      *bool  `json:"use_secondary"`
}

// handleSettings changes the secondary zone and flag for later selections.
// Either field may be omitted to keep its current value.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cur := sess.Settings()
	zone := cur.SecondaryZone
	if req.SecondaryTimezone != "" {
		zone = req.SecondaryTimezone
	}
	use := cur.UseSecondary
	if req.UseSecondary != nil {
		use = *req.UseSecondary
	}

	if _, err := sess.Configure(zone, use, s.deps.Zones); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	appLog.Debug("session settings changed", "session", sess.ID(), "secondary", zone, "use_secondary", use)
	writeJSON(w, http.StatusOK, s.sessionView(sess))
}

// selectRequest is the event shape posted by the calendar widget. A missing
// select member is a no-op.
type selectRequest struct {
	Select *model.SelectionEvent `json:"select"`
}

type selectResponse struct {
	Record recordDTO `json:"record"`
	Text   string    `json:"text"`
}

// handleSelect formats one selection and appends it to the session log.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Select == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rec, err := sess.Select(*req.Select, s.deps.Formatter, s.deps.Zones)
	if err != nil {
		status, reason := classifySelectError(err)
		if s.deps.Metrics != nil {
			s.deps.Metrics.SelectionErrors.WithLabelValues(reason).Inc()
		}
		appLog.Warn("selection rejected", "session", sess.ID(), "reason", reason, "err", err)
		writeError(w, status, err.Error())
		return
	}

	if s.deps.Metrics != nil {
		mode := "primary"
		if rec.SecondaryZone != "" {
			mode = "secondary"
		}
		s.deps.Metrics.RangesAppended.WithLabelValues(mode).Inc()
	}
	writeJSON(w, http.StatusOK, selectResponse{
		Record: toRecordDTO(rec),
		Text:   sess.Log().Text(),
	})
}

// classifySelectError maps a selection failure to an HTTP status and a
// metrics label.
func classifySelectError(err error) (int, string) {
	switch {
	case errors.Is(err, rangefmt.ErrMalformedTimestamp):
		return http.StatusUnprocessableEntity, "malformed_timestamp"
	case errors.Is(err, rangefmt.ErrMixedZoneInfo):
		return http.StatusUnprocessableEntity, "mixed_zone_info"
	case errors.Is(err, rangefmt.ErrInvertedRange):
		return http.StatusUnprocessableEntity, "inverted_range"
	case errors.Is(err, tzcatalog.ErrUnknownZone):
		return http.StatusUnprocessableEntity, "unknown_zone"
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) handleRangesText(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, sess.Log().Text())
}

func (s *Server) handleRangesICS(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	body := sess.Log().ICS(icsProductID, sess.ID(), s.deps.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ranges.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

type busyResponse struct {
	Enabled   bool              `json:"enabled"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Timezone  string            `json:"timezone"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
	Blocks    []model.BusyBlock `json:"blocks"`
}

// handleBusy returns busy blocks from the subscribed feeds for
// [start, end), in the primary zone.
//
// GET /api/busy?start=2024-06-01T00:00:00+09:00&end=2024-06-08T00:00:00+09:00
//   - start: default now
//   - end:   default start + 7 days
func (s *Server) handleBusy(w http.ResponseWriter, r *http.Request) {
	loc := s.deps.Formatter.Primary()
	q := r.URL.Query()

	start := s.deps.Now().In(loc)
	if v := q.Get("start"); v != "" {
		t, _, err := rangefmt.ParseTimestamp(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start: "+err.Error())
			return
		}
		start = t
	}
	end := start.AddDate(0, 0, defaultBusyDays)
	if v := q.Get("end"); v != "" {
		t, _, err := rangefmt.ParseTimestamp(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end: "+err.Error())
			return
		}
		end = t
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, rangefmt.ErrInvertedRange.Error())
		return
	}

	resp := busyResponse{
		Start:    start.In(loc),
		End:      end.In(loc),
		Timezone: loc.String(),
		Blocks:   []model.BusyBlock{},
	}
	if s.deps.Busy == nil || !s.deps.Busy.Enabled() {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	blocks, err := s.deps.Busy.Blocks(start, end, loc)
	if err != nil {
		if errors.Is(err, busy.ErrWindowTooLarge) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("busy expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand busy events")
		return
	}

	resp.Enabled = true
	resp.Blocks = blocks
	if at := s.deps.Busy.UpdatedAt(); !at.IsZero() {
		resp.UpdatedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
