package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dashborion/dashborion/internal/authz"
	"github.com/dashborion/dashborion/internal/db/bunx"
	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/dashborion/dashborion/internal/repository"
)

// AdminHandlers covers grant and user administration. Every route here sits
// behind the global-admin gate.
type AdminHandlers struct {
	users    repository.UserRepository
	grants   repository.GrantRepository
	sessions repository.SessionRepository
}

func NewAdminHandlers(
	users repository.UserRepository,
	grants repository.GrantRepository,
	sessions repository.SessionRepository,
) *AdminHandlers {
	return &AdminHandlers{users: users, grants: grants, sessions: sessions}
}

type createGrantRequest struct {
	GroupName   string   `json:"group_name"`
	Project     string   `json:"project"`
	Environment string   `json:"environment"`
	Role        string   `json:"role"`
	Resources   []string `json:"resources,omitempty"`
}

// CreateGrant handles POST /api/admin/grants.
func (h *AdminHandlers) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req createGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GroupName == "" || req.Project == "" || req.Environment == "" {
		writeError(w, http.StatusBadRequest, "group_name, project, and environment are required")
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var createdBy string
	if ac, ok := authz.FromContext(r.Context()); ok {
		createdBy = ac.Email
	}

	grant := &models.Grant{
		ID:          bunx.NewUUIDv7(),
		GroupName:   req.GroupName,
		Project:     req.Project,
		Environment: req.Environment,
		Role:        string(role),
		Resources:   req.Resources,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}
	if err := h.grants.Create(r.Context(), grant); err != nil {
		log.Printf("ERROR: create grant for %s: %v", req.GroupName, err)
		writeError(w, http.StatusInternalServerError, "failed to create grant")
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

// ListGrants handles GET /api/admin/grants.
func (h *AdminHandlers) ListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.grants.List(r.Context())
	if err != nil {
		log.Printf("ERROR: list grants: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list grants")
		return
	}
	if grants == nil {
		grants = []models.Grant{}
	}
	writeJSON(w, http.StatusOK, grants)
}

// DeleteGrant handles DELETE /api/admin/grants/{id}.
func (h *AdminHandlers) DeleteGrant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.grants.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "grant not found")
			return
		}
		log.Printf("ERROR: delete grant %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete grant")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// DisableUser handles POST /api/admin/users/{id}/disable. Disabling also
// revokes every live session so the account cannot ride out an open browser.
func (h *AdminHandlers) DisableUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.users.Disable(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: disable user %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to disable user")
		return
	}
	if err := h.sessions.RevokeAllForUser(r.Context(), id); err != nil {
		log.Printf("WARNING: revoke sessions for disabled user %s: %v", id, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}
