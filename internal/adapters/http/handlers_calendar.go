package web

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"calendarrecords/internal/adapters/http/middleware"
	"calendarrecords/internal/adapters/ics"
	"calendarrecords/internal/application/listutil"
	"calendarrecords/internal/application/orchestrators"
	"calendarrecords/internal/application/projections"
	domain "calendarrecords/internal/domain/calendar"
)

// handleCreateCalendarRecord handles POST /v1/calendar
func (s *Server) handleCreateCalendarRecord(w http.ResponseWriter, r *http.Request) {
	input, err := decodeCreate(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	input.Actor = actor(r)
	rec, err := orchestrators.ExecuteCreateCalendarRecord(r.Context(), input, orchestrators.CreateCalendarRecordDeps{
		Store: s.store,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/calendar/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

// handleListCalendarRecords handles GET /v1/calendar
func (s *Server) handleListCalendarRecords(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	page, err := projections.QueryCalendarRecords(r.Context(), query, s.readDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetCalendarRecord handles GET /v1/calendar/{id}
func (s *Server) handleGetCalendarRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateCalendarRecord handles PATCH /v1/calendar/{id}
func (s *Server) handleUpdateCalendarRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	patch, err := decodePatch(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rec, err := orchestrators.ExecuteUpdateCalendarRecord(r.Context(), orchestrators.UpdateCalendarRecordInput{
		ID:    id,
		Patch: patch,
		Actor: actor(r),
	}, orchestrators.UpdateCalendarRecordDeps{Store: s.store})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteCalendarRecord handles DELETE /v1/calendar/{id}
func (s *Server) handleDeleteCalendarRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if _, err := orchestrators.ExecuteDeleteCalendarRecord(r.Context(), orchestrators.DeleteCalendarRecordInput{
		ID:    id,
		Actor: actor(r),
	}, orchestrators.DeleteCalendarRecordDeps{Store: s.store}); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetCalendarRecordICS handles GET /v1/calendar/{id}/ics
func (s *Server) handleGetCalendarRecordICS(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeICS(w, []domain.Record{rec})
}

// handleListCalendarRecordsICS handles GET /v1/calendar.ics
// It takes the same query as the JSON list and exports that one page; an empty page is 204.
func (s *Server) handleListCalendarRecordsICS(w http.ResponseWriter, r *http.Request) {
	query, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	page, err := projections.QueryCalendarRecords(r.Context(), query, s.readDeps())
	if err != nil {
		internalError(w, err)
		return
	}
	writeICS(w, page.Results)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePerf handles GET /v1/debug/perf?since=15m&top=10
func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	since := 15 * time.Minute
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeServiceError(w, fieldError("since", "must be a positive duration such as 15m"))
			return
		}
		since = d
	}
	top, err := listutil.ParsePositiveInt(r.URL.Query(), "top", 10)
	if err != nil {
		writeServiceError(w, fieldError("top", err.Error()))
		return
	}
	if s.collector == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Snapshot(time.Now().Add(-since), top))
}

// actor names the authenticated caller for write events.
func actor(r *http.Request) string {
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		return p.Name
	}
	return ""
}

func (s *Server) readDeps() projections.GetCalendarRecordsDeps {
	return projections.GetCalendarRecordsDeps{Store: s.store}
}

// lookup resolves {id} to a record, writing the error response itself on failure.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (domain.Record, bool) {
	id, err := parseID(r)
	if err != nil {
		writeServiceError(w, err)
		return domain.Record{}, false
	}
	found, err := projections.QueryCalendarRecordByID(r.Context(), id, s.readDeps())
	if err != nil {
		internalError(w, err)
		return domain.Record{}, false
	}
	rec, ok := found.Get()
	if !ok {
		writeServiceError(w, domain.ErrNotFound)
		return domain.Record{}, false
	}
	return rec, true
}

// writeICS encodes into a buffer first so an encoding failure can still become a 500.
func writeICS(w http.ResponseWriter, records []domain.Record) {
	var buf bytes.Buffer
	if err := ics.Encode(&buf, records); err != nil {
		if errors.Is(err, ics.ErrEmpty) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", ics.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
