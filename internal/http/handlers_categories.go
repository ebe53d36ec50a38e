package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"homie/internal/core"
)

type categoryResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	MonthlyLimit      string `json:"monthly_limit"`
	MonthlyLimitCents int64  `json:"monthly_limit_cents"`
	Color             string `json:"color,omitempty"`
}

func (s *Server) categoryResponse(c core.BudgetCategory) categoryResponse {
	return categoryResponse{
		ID:                c.ID,
		Name:              c.Name,
		MonthlyLimit:      c.MonthlyLimit.Format(s.cfg.CurrencySymbol),
		MonthlyLimitCents: c.MonthlyLimit.Cents,
		Color:             c.Color,
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.repo.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list categories failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, s.categoryResponse(c))
	}
	respondJSON(w, http.StatusOK, out)
}

type categoryRequest struct {
	Name         string `json:"name"`
	MonthlyLimit string `json:"monthly_limit"`
	Color        string `json:"color"`
}

func (s *Server) decodeCategory(r *http.Request) (core.BudgetCategory, error) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return core.BudgetCategory{}, errors.New("invalid JSON body")
	}

	cat := core.BudgetCategory{
		Name:  sanitizeInput(req.Name),
		Color: sanitizeInput(req.Color),
	}
	if req.MonthlyLimit != "" {
		cents, err := core.ParseDecimalToCents(req.MonthlyLimit)
		if err != nil {
			return core.BudgetCategory{}, errors.New("invalid monthly limit: " + err.Error())
		}
		cat.MonthlyLimit = core.Money{Cents: cents}
	}
	if err := cat.Validate(); err != nil {
		return core.BudgetCategory{}, err
	}
	return cat, nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := s.decodeCategory(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.repo.CreateCategory(r.Context(), cat)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "create category failed", "name", cat.Name, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	cat, err := s.decodeCategory(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat.ID = id

	err = s.repo.UpdateCategory(r.Context(), cat)
	if errors.Is(err, core.ErrNotFound) {
		respondError(w, http.StatusNotFound, "category not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "update category failed", "category_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, s.categoryResponse(cat))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	deleted, err := s.repo.DeleteCategory(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "delete category failed", "category_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "category not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
