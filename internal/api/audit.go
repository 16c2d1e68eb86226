package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/events"
)

// emit stamps the caller on ev, counts it and fans it out.
func (s *Server) emit(r *http.Request, ev events.Event) {
	ev.ActorID = actorID(r)
	s.metrics.accessEvents.WithLabelValues(string(ev.Type)).Inc()
	s.events.Emit(r.Context(), ev)
}

// handleListAuditLogs returns paginated audit entries with optional filters.
//
// Query parameters:
//   - action: create, update, delete, grant, revoke, login, refresh
//   - entityType: user, application, permission, session
//   - entityId: a specific entity
//   - userId: the acting user
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		UserID:     q.Get("userId"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditLog.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, "list audit logs", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
