package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"venuehours/internal/database"
	"venuehours/internal/export"
	"venuehours/internal/hours"
	"venuehours/internal/service"
)

const (
	// Default export windows, counted from today.
	defaultICSDays  = service.MaxScheduleDays
	defaultXLSXDays = 30
)

// ScheduleResponse is the response for GET .../schedule.
type ScheduleResponse struct {
	LocationID int64              `json:"location_id"`
	Days       []service.DayEntry `json:"days"`
	Period     struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// PreviewRequest is the body of POST /api/v1/preview.
type PreviewRequest struct {
	Schedule *hours.WeeklySchedule `json:"schedule,omitempty"`
	Rules    []hours.OverrideRule  `json:"rules"`
	At       string                `json:"at,omitempty"` // RFC3339, defaults to now
}

// handleStatus reports whether a location is open.
// GET /api/v1/locations/{id}/status?at=RFC3339
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	id, ok := locationID(w, r)
	if !ok {
		return
	}

	at := s.now()
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at format; expected RFC3339")
			return
		}
		at = t
	}

	res, err := s.svc.Status(r.Context(), id, at)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSchedule returns the merged schedule of a date range.
// GET /api/v1/locations/{id}/schedule?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	id, ok := locationID(w, r)
	if !ok {
		return
	}

	start, end, err := parseDateRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, err := s.svc.Schedule(r.Context(), id, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp := ScheduleResponse{LocationID: id, Days: days}
	resp.Period.Start = start.Format(hours.DateLayout)
	resp.Period.End = end.Format(hours.DateLayout)
	writeJSON(w, http.StatusOK, resp)
}

// handleOverrides lists or creates overrides of a location.
// GET  /api/v1/locations/{id}/overrides?type=&start_date=&end_date=&include_inactive=true
// POST /api/v1/locations/{id}/overrides
func (s *HTTPServer) handleOverrides(w http.ResponseWriter, r *http.Request) {
	id, ok := locationID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.listOverrides(w, r, id)
	case http.MethodPost:
		s.createOverride(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET or POST")
	}
}

func (s *HTTPServer) listOverrides(w http.ResponseWriter, r *http.Request, id int64) {
	q := r.URL.Query()
	f := database.OverrideFilter{
		Type:            hours.OverrideType(q.Get("type")),
		Start:           q.Get("start_date"),
		End:             q.Get("end_date"),
		IncludeInactive: q.Get("include_inactive") == "true",
	}
	if f.Type != "" && !f.Type.Valid() {
		writeError(w, http.StatusBadRequest, "invalid type; expected closure, holiday, seasonal or special")
		return
	}
	for _, p := range [][2]string{{"start_date", f.Start}, {"end_date", f.End}} {
		if p[1] == "" {
			continue
		}
		if _, err := hours.ParseDate(p[1]); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s format; expected YYYY-MM-DD", p[0]))
			return
		}
	}

	overrides, err := s.svc.ListOverrides(r.Context(), id, f)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if overrides == nil {
		overrides = []database.Override{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

func (s *HTTPServer) createOverride(w http.ResponseWriter, r *http.Request, id int64) {
	var rule hours.OverrideRule
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.svc.CreateOverride(r.Context(), id, rule)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// handleOverride deletes one override.
// DELETE /api/v1/locations/{id}/overrides/{ruleID}
func (s *HTTPServer) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use DELETE")
		return
	}
	id, ok := locationID(w, r)
	if !ok {
		return
	}

	ruleID := r.PathValue("ruleID")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "override id is required")
		return
	}

	if err := s.svc.DeleteOverride(r.Context(), id, ruleID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handlePreview evaluates an unsaved schedule.
// POST /api/v1/preview
func (s *HTTPServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req PreviewRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	at := s.now()
	if req.At != "" {
		t, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at format; expected RFC3339")
			return
		}
		at = t
	}

	writeJSON(w, http.StatusOK, s.svc.Preview(at, req.Schedule, req.Rules))
}

// handleCalendarICS exports the overrides of a location as iCalendar.
// GET /api/v1/locations/{id}/calendar.ics?start_date=&end_date=
func (s *HTTPServer) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	data, ok := s.exportData(w, r, defaultICSDays)
	if !ok {
		return
	}

	body := export.Calendar(data.Location.Name, database.Rules(data.Overrides), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="location-%d.ics"`, data.Location.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleScheduleXLSX exports the merged schedule as a spreadsheet.
// GET /api/v1/locations/{id}/schedule.xlsx?start_date=&end_date=
func (s *HTTPServer) handleScheduleXLSX(w http.ResponseWriter, r *http.Request) {
	data, ok := s.exportData(w, r, defaultXLSXDays)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Workbook(&buf, data.Days, database.Rules(data.Overrides)); err != nil {
		s.log.Error().Err(err).Int64("location_id", data.Location.ID).Msg("failed to build schedule workbook")
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="location-%d-schedule.xlsx"`, data.Location.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// exportData loads the export window; without dates it runs from today for
// defaultDays days.
func (s *HTTPServer) exportData(w http.ResponseWriter, r *http.Request, defaultDays int) (*service.ExportData, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return nil, false
	}
	id, ok := locationID(w, r)
	if !ok {
		return nil, false
	}

	q := r.URL.Query()
	startStr, endStr := q.Get("start_date"), q.Get("end_date")
	if startStr == "" && endStr == "" {
		today := hours.DateOf(s.now().In(s.svc.Engine().Config().Location))
		startStr = today.Format(hours.DateLayout)
		endStr = today.AddDate(0, 0, defaultDays-1).Format(hours.DateLayout)
	}
	start, end, err := parseDateRange(startStr, endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	data, err := s.svc.Export(r.Context(), id, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	return data, true
}

func locationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid location id")
		return 0, false
	}
	return id, true
}

func parseDateRange(startStr, endStr string) (start, end time.Time, err error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date and end_date are required")
	}

	start, err = time.Parse(hours.DateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format; expected YYYY-MM-DD")
	}

	end, err = time.Parse(hours.DateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format; expected YYYY-MM-DD")
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before or equal to end_date")
	}

	days := int(end.Sub(start).Hours() / 24)
	if days > service.MaxScheduleDays {
		return time.Time{}, time.Time{}, fmt.Errorf("date range exceeds maximum of %d days", service.MaxScheduleDays)
	}

	return start, end, nil
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrLocationNotFound):
		writeError(w, http.StatusNotFound, "location not found")
	case errors.Is(err, service.ErrLocationInactive):
		writeError(w, http.StatusNotFound, "location is inactive")
	case errors.Is(err, service.ErrOverrideNotFound):
		writeError(w, http.StatusNotFound, "override not found")
	case errors.Is(err, database.ErrOverrideExists):
		writeError(w, http.StatusConflict, "override with this id already exists")
	case errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, hours.ErrInvalidRule),
		errors.Is(err, hours.ErrInvalidDate),
		errors.Is(err, hours.ErrInvalidTime),
		errors.Is(err, hours.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
