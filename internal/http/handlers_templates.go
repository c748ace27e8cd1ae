package http

import (
	"net/http"
	"strings"

	"macrotracker/internal/api"
)

func (s *Server) handleListFoodTemplates(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	foods, err := s.tracker.FoodTemplates(r.Context(), search, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewFoodTemplates(foods))
}

func (s *Server) handleCreateFoodTemplate(w http.ResponseWriter, r *http.Request) {
	var req foodTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.tracker.CreateFoodTemplate(r.Context(), req.toTemplate())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.NewFoodTemplate(f))
}

func (s *Server) handleDeleteFoodTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.DeleteFoodTemplate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogFoodTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req logRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := req.toOptions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	logged, err := s.tracker.LogFoodTemplate(r.Context(), id, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loggedView(logged))
}

func (s *Server) handleListMealTemplates(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	meals, err := s.tracker.MealTemplates(r.Context(), search, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]api.MealTemplate, 0, len(meals))
	for _, m := range meals {
		out = append(out, api.NewMealTemplate(m.Template, m.Totals))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMealTemplate(w http.ResponseWriter, r *http.Request) {
	var req mealTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.tracker.CreateMealTemplate(r.Context(), req.toTemplate())
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.tracker.MealView(r.Context(), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.NewMealTemplate(view.Template, view.Totals))
}

func (s *Server) handleDeleteMealTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracker.DeleteMealTemplate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogMealTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req logRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := req.toOptions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	logged, err := s.tracker.LogMealTemplate(r.Context(), id, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loggedView(logged))
}
