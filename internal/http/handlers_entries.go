package http

import (
	"net/http"

	"github.com/google/uuid"

	"macrotracker/internal/api"
	"macrotracker/internal/services"
)

func loggedView(le services.LoggedEntry) api.Entry {
	v := api.NewEntry(le.Entry)
	v.Discrepancy = le.Discrepancy
	return v
}

// handleListEntries lists the entries of ?date= (default today), oldest
// first.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	day, err := queryDay(r, "date", s.tracker.Location(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.tracker.DayEntries(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewEntries(entries))
}

func (s *Server) handleRecentEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.tracker.RecentEntries(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewEntries(entries))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toEntry(uuid.Nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logged, err := s.tracker.LogEntry(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loggedView(logged))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toEntry(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logged, err := s.tracker.UpdateEntry(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loggedView(logged))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.DeleteEntry(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
