package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/directory"
	"github.com/nerrad567/appaccess/internal/events"
)

type setPermissionRequest struct {
	ApplicationID  string `json:"applicationId"`
	PermissionType string `json:"permissionType"`
}

func writePermissions(w http.ResponseWriter, perms []directory.EnrichedPermission) {
	if perms == nil {
		perms = []directory.EnrichedPermission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": perms,
		"count":       len(perms),
	})
}

// handleListPermissions returns every grant enriched with user and
// application names.
func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.perms.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, "list permissions", err)
		return
	}
	writePermissions(w, perms)
}

func (s *Server) handleListUserPermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.users.GetByID(r.Context(), id); err != nil {
		s.writeDomainError(w, r, "list user permissions", err)
		return
	}
	perms, err := s.perms.ListForUser(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "list user permissions", err)
		return
	}
	writePermissions(w, perms)
}

func (s *Server) handleListApplicationPermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.apps.GetByID(r.Context(), id); err != nil {
		s.writeDomainError(w, r, "list application permissions", err)
		return
	}
	perms, err := s.perms.ListForApplication(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "list application permissions", err)
		return
	}
	writePermissions(w, perms)
}

// handleGetPermission returns the grant a user holds on one application.
// An unknown user or application is reported before a missing grant.
func (s *Server) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	appID := chi.URLParam(r, "applicationId")

	if _, err := s.users.GetByID(r.Context(), userID); err != nil {
		s.writeDomainError(w, r, "get permission", err)
		return
	}
	if _, err := s.apps.GetByID(r.Context(), appID); err != nil {
		s.writeDomainError(w, r, "get permission", err)
		return
	}
	p, err := s.perms.Get(r.Context(), userID, appID)
	if err != nil {
		s.writeDomainError(w, r, "get permission", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleSetPermission upserts the grant for (user, application). It answers
// 201 when the grant is new and 200 when an existing one was replaced.
func (s *Server) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var req setPermissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ApplicationID == "" {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, "applicationId is required")
		return
	}
	level, err := directory.ParsePermissionType(req.PermissionType)
	if err != nil {
		s.writeDomainError(w, r, "set permission", err)
		return
	}

	perm, created, err := s.perms.Set(r.Context(), userID, req.ApplicationID, level)
	if err != nil {
		s.writeDomainError(w, r, "set permission", err)
		return
	}

	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionGrant,
		EntityType: audit.EntityPermission,
		EntityID:   perm.ID,
		UserID:     actorID(r),
		Source:     "api",
		Details: map[string]any{
			"userId":         userID,
			"applicationId":  req.ApplicationID,
			"permissionType": level,
			"created":        created,
		},
	})
	s.emit(r, events.Event{
		Type:           events.PermissionSet,
		UserID:         userID,
		ApplicationID:  req.ApplicationID,
		PermissionType: level.String(),
	})

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, perm)
}

// handleRemovePermission revokes one grant. A missing grant is not an error.
func (s *Server) handleRemovePermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	appID := chi.URLParam(r, "applicationId")

	removed, err := s.perms.Remove(r.Context(), userID, appID)
	if err != nil {
		s.writeDomainError(w, r, "remove permission", err)
		return
	}

	if removed {
		s.recorder.Record(r.Context(), audit.Entry{
			Action:     audit.ActionRevoke,
			EntityType: audit.EntityPermission,
			UserID:     actorID(r),
			Source:     "api",
			Details:    map[string]any{"userId": userID, "applicationId": appID},
		})
		s.emit(r, events.Event{Type: events.PermissionRemoved, UserID: userID, ApplicationID: appID, Removed: 1})
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	removed, err := s.perms.RemoveAllForUser(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, "remove user permissions", err)
		return
	}
	s.afterBulkRemove(r, events.Event{Type: events.PermissionRemoved, UserID: userID, Removed: removed})
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleRemoveApplicationPermissions(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")
	removed, err := s.perms.RemoveAllForApplication(r.Context(), appID)
	if err != nil {
		s.writeDomainError(w, r, "remove application permissions", err)
		return
	}
	s.afterBulkRemove(r, events.Event{Type: events.PermissionRemoved, ApplicationID: appID, Removed: removed})
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) afterBulkRemove(r *http.Request, ev events.Event) {
	if ev.Removed == 0 {
		return
	}
	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionRevoke,
		EntityType: audit.EntityPermission,
		UserID:     actorID(r),
		Source:     "api",
		Details: map[string]any{
			"userId":        ev.UserID,
			"applicationId": ev.ApplicationID,
			"removed":       ev.Removed,
		},
	})
	s.emit(r, ev)
}
