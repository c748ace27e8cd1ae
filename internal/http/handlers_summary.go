package http

import (
	"net/http"

	"macrotracker/internal/api"
)

func (s *Server) handleGetTargets(w http.ResponseWriter, r *http.Request) {
	t, err := s.tracker.Targets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewTargets(t))
}

func (s *Server) handleUpdateTargets(w http.ResponseWriter, r *http.Request) {
	var req api.Targets
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.UpdateTargets(r.Context(), req.Model()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleDaySummary(w http.ResponseWriter, r *http.Request) {
	day, err := queryDay(r, "date", s.tracker.Location(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.tracker.DaySummary(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewSummary(sum))
}

// handleWeekSummary returns the seven days ending on ?end= (default
// today), oldest first.
func (s *Server) handleWeekSummary(w http.ResponseWriter, r *http.Request) {
	end, err := queryDay(r, "end", s.tracker.Location(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := s.tracker.WeekSummary(r.Context(), end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewSummaries(week))
}
