package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/directory"
	"github.com/nerrad567/appaccess/internal/events"
)

type applicationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Category    string `json:"category"`
	URL         string `json:"url"`
}

func (req applicationRequest) application() *directory.Application {
	return &directory.Application{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Category:    req.Category,
		URL:         req.URL,
	}
}

// handleListApplications returns every application ordered by name.
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.apps.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, "list applications", err)
		return
	}
	if apps == nil {
		apps = []directory.Application{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applications": apps,
		"count":        len(apps),
	})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.apps.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, "get application", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	app := req.application()
	if err := s.apps.Create(r.Context(), app); err != nil {
		s.writeDomainError(w, r, "create application", err)
		return
	}

	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityApplication,
		EntityID:   app.ID,
		UserID:     actorID(r),
		Source:     "api",
		Details:    map[string]any{"name": app.Name},
	})
	s.emit(r, events.Event{Type: events.ApplicationCreated, ApplicationID: app.ID})

	writeJSON(w, http.StatusCreated, app)
}

// handleUpdateApplication replaces an application's descriptive fields.
func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	app := req.application()
	app.ID = chi.URLParam(r, "id")
	if err := s.apps.Update(r.Context(), app); err != nil {
		s.writeDomainError(w, r, "update application", err)
		return
	}

	// Reload so createdAt is populated.
	updated, err := s.apps.GetByID(r.Context(), app.ID)
	if err != nil {
		s.writeDomainError(w, r, "update application", err)
		return
	}

	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityApplication,
		EntityID:   app.ID,
		UserID:     actorID(r),
		Source:     "api",
	})

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteApplication removes an application with its grants in one
// transaction.
func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := s.apps.Delete(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, "delete application", err)
		return
	}

	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionDelete,
		EntityType: audit.EntityApplication,
		EntityID:   id,
		UserID:     actorID(r),
		Source:     "api",
		Details:    map[string]any{"permissionsRemoved": removed},
	})
	s.emit(r, events.Event{Type: events.ApplicationDeleted, ApplicationID: id, Removed: removed})

	writeJSON(w, http.StatusOK, deleteResponse{ID: id, PermissionsRemoved: removed})
}
