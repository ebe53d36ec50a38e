package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"homie/internal/core"
)

// knownFeatures are the areas an admin can hide per user.
var knownFeatures = map[string]bool{
	"shopping": true,
	"chores":   true,
	"tracker":  true,
	"bills":    true,
	"budget":   true,
}

type userResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	Admin     bool   `json:"admin"`
	LastLogin string `json:"last_login,omitempty"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list users failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp := userResponse{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			FullName: u.FullName,
			Admin:    s.isAdmin(u),
		}
		if !u.LastLogin.IsZero() {
			resp.LastLogin = u.LastLogin.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}

type featureOverrideResponse struct {
	UserID    int64  `json:"user_id"`
	Feature   string `json:"feature"`
	Visible   bool   `json:"visible"`
	UpdatedBy int64  `json:"updated_by,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.repo.ListFeatureOverrides(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list feature overrides failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]featureOverrideResponse, 0, len(overrides))
	for _, fv := range overrides {
		out = append(out, featureOverrideResponse{
			UserID:    fv.UserID,
			Feature:   fv.Feature,
			Visible:   fv.Visible,
			UpdatedBy: fv.UpdatedBy,
			UpdatedAt: fv.UpdatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type setFeatureRequest struct {
	UserID  int64  `json:"user_id"`
	Feature string `json:"feature"`
	Visible bool   `json:"visible"`
}

func (s *Server) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	admin, _ := userFromContext(r.Context())

	var req setFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !knownFeatures[req.Feature] {
		respondError(w, http.StatusBadRequest, "unknown feature")
		return
	}

	if _, err := s.repo.GetUser(r.Context(), req.UserID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "get user failed", "user_id", req.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.repo.SetFeatureVisibility(r.Context(), req.UserID, req.Feature, req.Visible, admin.ID); err != nil {
		s.logger.ErrorContext(r.Context(), "set feature failed",
			"user_id", req.UserID, "feature", req.Feature, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.InfoContext(r.Context(), "feature visibility changed",
		"user_id", req.UserID, "feature", req.Feature, "visible", req.Visible, "admin_id", admin.ID)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
