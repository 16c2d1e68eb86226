package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/auth"
	"github.com/nerrad567/appaccess/internal/events"
	"github.com/nerrad567/appaccess/internal/infrastructure/influxdb"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    int        `json:"expiresIn"`
	User         *auth.User `json:"user,omitempty"`
}

// handleLogin exchanges credentials for an access and refresh token. Unknown
// email, wrong password and inactive account all get the same 401.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	pair, err := s.authSvc.Login(r.Context(), req.Email, req.Password, r.UserAgent())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.recordAuth(influxdb.KindLogin, influxdb.OutcomeFailure, "invalid_credentials")
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.recordAuth(influxdb.KindLogin, influxdb.OutcomeFailure, "error")
		s.writeDomainError(w, r, "login", err)
		return
	}

	s.recordAuth(influxdb.KindLogin, influxdb.OutcomeSuccess, "")
	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionLogin,
		EntityType: audit.EntitySession,
		EntityID:   pair.User.ID,
		UserID:     pair.User.ID,
		Source:     "api",
		Details:    map[string]any{"remote": clientIP(r)},
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         pair.User,
	})
}

// handleRegister creates a viewer account. Any role in the body is ignored.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.authSvc.Register(r.Context(), auth.Profile{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		s.recordAuth(influxdb.KindRegister, influxdb.OutcomeFailure, "")
		s.writeDomainError(w, r, "register", err)
		return
	}

	s.recordAuth(influxdb.KindRegister, influxdb.OutcomeSuccess, "")
	s.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityUser,
		EntityID:   user.ID,
		UserID:     user.ID,
		Source:     "register",
	})
	s.emit(r, events.Event{Type: events.UserCreated, UserID: user.ID})

	writeJSON(w, http.StatusCreated, user)
}

// handleRefresh rotates a refresh token. Presenting an already-rotated
// token revokes its whole family.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refreshToken is required")
		return
	}

	pair, err := s.authSvc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenReuse):
			s.recordAuth(influxdb.KindRefresh, influxdb.OutcomeFailure, "token_reuse")
			s.logger.Warn("refresh token reuse detected", "remote", clientIP(r), "request_id", requestIDFrom(r.Context()))
			s.recorder.Record(r.Context(), audit.Entry{
				Action:     audit.ActionRefresh,
				EntityType: audit.EntitySession,
				Source:     "api",
				Details:    map[string]any{"outcome": "reuse_detected", "remote": clientIP(r)},
			})
			writeUnauthorized(w, "refresh token revoked")
		case errors.Is(err, auth.ErrTokenExpired):
			s.recordAuth(influxdb.KindRefresh, influxdb.OutcomeFailure, "expired")
			writeUnauthorized(w, "refresh token expired")
		case errors.Is(err, auth.ErrTokenRevoked), errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrUserInactive):
			s.recordAuth(influxdb.KindRefresh, influxdb.OutcomeFailure, "invalid")
			writeUnauthorized(w, "invalid refresh token")
		default:
			s.recordAuth(influxdb.KindRefresh, influxdb.OutcomeFailure, "error")
			s.writeDomainError(w, r, "refresh", err)
		}
		return
	}

	s.recordAuth(influxdb.KindRefresh, influxdb.OutcomeSuccess, "")
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// handleMe returns the caller's account as currently stored.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeUnauthorized(w, "authorization required")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleWSTicket issues a single-use WebSocket ticket so the access token
// never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeUnauthorized(w, "authorization required")
		return
	}
	ticket, err := s.tickets.issue(user.ID, user.Role, time.Now())
	if err != nil {
		s.logger.Error("generating websocket ticket failed", "error", err)
		writeInternalError(w, "failed to generate ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":    ticket,
		"expiresIn": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// expire after ticketTTL.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
}

type ticketEntry struct {
	userID    string
	role      access.Role
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// ticketBytes is the number of random bytes in a WebSocket ticket.
const ticketBytes = 32

func (t *ticketStore) issue(userID string, role access.Role, now time.Time) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	ticket := hex.EncodeToString(b)

	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{userID: userID, role: role, expiresAt: now.Add(ticketTTL)}
	t.mu.Unlock()
	return ticket, nil
}

// consume validates and removes a ticket.
func (t *ticketStore) consume(ticket string, now time.Time) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(t.tickets, ticket)
	return entry, now.Before(entry.expiresAt)
}

func (t *ticketStore) purge(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}
