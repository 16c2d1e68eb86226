package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/appaccess/internal/access"
)

// healthCheckTimeout bounds each component check made by GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// No auth required
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Entry points are rate limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/refresh-token", s.handleRefresh)
		})

		// WebSocket authenticates with a single-use ticket, not a bearer header
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/users", func(r chi.Router) {
				r.With(s.requirePermission(access.ActionViewUsers)).Get("/", s.handleListUsers)
				r.With(s.requirePermission(access.ActionCreateUser)).Post("/", s.handleCreateUser)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(access.ActionViewUsers)).Get("/", s.handleGetUser)
					r.With(s.requirePermission(access.ActionUpdateUser)).Put("/", s.handleUpdateUser)
					r.With(s.requirePermission(access.ActionDeleteUser)).Delete("/", s.handleDeleteUser)

					r.Route("/permissions", func(r chi.Router) {
						r.With(s.requirePermission(access.ActionViewPermissions)).Get("/", s.handleListUserPermissions)
						r.With(s.requirePermission(access.ActionSetPermission)).Post("/", s.handleSetPermission)
						r.With(s.requirePermission(access.ActionRemovePermission)).Delete("/", s.handleRemoveUserPermissions)
						r.With(s.requirePermission(access.ActionViewPermissions)).Get("/{applicationId}", s.handleGetPermission)
						r.With(s.requirePermission(access.ActionRemovePermission)).Delete("/{applicationId}", s.handleRemovePermission)
					})
				})
			})

			r.Route("/applications", func(r chi.Router) {
				r.With(s.requirePermission(access.ActionViewApplications)).Get("/", s.handleListApplications)
				r.With(s.requirePermission(access.ActionCreateApplication)).Post("/", s.handleCreateApplication)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(access.ActionViewApplications)).Get("/", s.handleGetApplication)
					r.With(s.requirePermission(access.ActionUpdateApplication)).Put("/", s.handleUpdateApplication)
					r.With(s.requirePermission(access.ActionDeleteApplication)).Delete("/", s.handleDeleteApplication)

					r.Route("/permissions", func(r chi.Router) {
						r.With(s.requirePermission(access.ActionViewPermissions)).Get("/", s.handleListApplicationPermissions)
						r.With(s.requirePermission(access.ActionRemovePermission)).Delete("/", s.handleRemoveApplicationPermissions)
					})
				})
			})

			r.With(s.requirePermission(access.ActionViewPermissions)).Get("/permissions", s.handleListPermissions)
			r.With(s.requirePermission(access.ActionViewAudit)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth returns the server health status and per-component checks.
// Any failing component reports "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.health))
	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"components": components,
		"wsClients":  s.hub.ClientCount(),
	})
}
