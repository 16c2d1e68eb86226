package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/auth"
	"github.com/nerrad567/appaccess/internal/events"
)

// ─── Request/Response Types ────────────────────────────────────────

type createUserRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     access.Role `json:"role,omitempty"`
}

type updateUserRequest struct {
	Name     *string      `json:"name,omitempty"`
	Email    *string      `json:"email,omitempty"`
	Password *string      `json:"password,omitempty"`
	Role     *access.Role `json:"role,omitempty"`
	IsActive *bool        `json:"isActive,omitempty"`
}

type deleteResponse struct {
	ID                 string `json:"id"`
	PermissionsRemoved int    `json:"permissionsRemoved"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListUsers returns all accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, "list users", err)
		return
	}
	if users == nil {
		users = []auth.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleGetUser returns one account.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleCreateUser creates an account with an explicit role. Role defaults
// to viewer.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = access.RoleViewer
	}

	user, err := s.authSvc.CreateUser(r.Context(),
		auth.Profile{Name: req.Name, Email: req.Email, Password: req.Password}, req.Role)
	if err != nil {
		s.writeDomainError(w, r, "create user", err)
		return
	}

	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityUser,
		EntityID:   user.ID,
		UserID:     actorID(r),
		Source:     "api",
		Details:    map[string]any{"role": user.Role},
	})
	s.emit(r, events.Event{Type: events.UserCreated, UserID: user.ID})

	writeJSON(w, http.StatusCreated, user)
}

// handleUpdateUser applies a partial update. Admins cannot demote or
// deactivate themselves, so at least one admin always remains reachable.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if id == actorID(r) {
		if req.Role != nil && *req.Role != access.RoleAdmin {
			writeError(w, http.StatusConflict, ErrCodeConflict, "cannot remove your own admin role")
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			writeError(w, http.StatusConflict, ErrCodeConflict, "cannot deactivate your own account")
			return
		}
	}

	user, err := s.authSvc.UpdateUser(r.Context(), id, auth.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		s.writeDomainError(w, r, "update user", err)
		return
	}

	details := map[string]any{}
	if req.Role != nil {
		details["role"] = *req.Role
	}
	if req.IsActive != nil {
		details["isActive"] = *req.IsActive
	}
	if req.Password != nil {
		details["passwordChanged"] = true
	}
	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityUser,
		EntityID:   id,
		UserID:     actorID(r),
		Source:     "api",
		Details:    details,
	})

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes an account with its grants and refresh tokens in
// one transaction.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == actorID(r) {
		writeError(w, http.StatusConflict, ErrCodeConflict, "cannot delete your own account")
		return
	}

	removed, err := s.users.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.writeDomainError(w, r, "delete user", err)
		return
	}

	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionDelete,
		EntityType: audit.EntityUser,
		EntityID:   id,
		UserID:     actorID(r),
		Source:     "api",
		Details:    map[string]any{"permissionsRemoved": removed},
	})
	s.emit(r, events.Event{Type: events.UserDeleted, UserID: id, Removed: removed})

	writeJSON(w, http.StatusOK, deleteResponse{ID: id, PermissionsRemoved: removed})
}
