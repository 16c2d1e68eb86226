package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/auth"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin@example.com", access.RoleAdmin)

	resp := env.login(t, "admin@example.com")
	if resp.Token == "" || resp.RefreshToken == "" {
		t.Fatalf("login response missing tokens: %+v", resp)
	}
	if resp.ExpiresIn != int((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d, want 900", resp.ExpiresIn)
	}
	if resp.User == nil || resp.User.Role != access.RoleAdmin {
		t.Errorf("User = %+v, want admin", resp.User)
	}
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "viewer@example.com", access.RoleViewer)
	inactive := env.createUser(t, "gone@example.com", access.RoleViewer)
	off := false
	if _, err := env.svc.UpdateUser(t.Context(), inactive.ID, auth.UserPatch{IsActive: &off}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"missing password", map[string]string{"email": "viewer@example.com"}, http.StatusBadRequest},
		{"unknown email", map[string]string{"email": "nobody@example.com", "password": testPassword}, http.StatusUnauthorized},
		{"wrong password", map[string]string{"email": "viewer@example.com", "password": "wrong-password"}, http.StatusUnauthorized},
		{"inactive account", map[string]string{"email": "gone@example.com", "password": testPassword}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", tt.body)
			expectStatus(t, rec, tt.wantStatus)
			if tt.wantStatus == http.StatusUnauthorized {
				var e Error
				decodeBody(t, rec, &e)
				if e.Message != "invalid credentials" {
					t.Errorf("message = %q, want uniform invalid credentials", e.Message)
				}
			}
		})
	}
}

func TestRegister_AlwaysViewer(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "New Person", "email": "New@Example.com", "password": testPassword, "role": "admin",
	})
	expectStatus(t, rec, http.StatusCreated)

	var user auth.User
	decodeBody(t, rec, &user)
	if user.Role != access.RoleViewer {
		t.Errorf("Role = %q, want viewer", user.Role)
	}
	if user.Email != "new@example.com" {
		t.Errorf("Email = %q, want normalised", user.Email)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Dup", "email": "new@example.com", "password": testPassword,
	})
	expectStatus(t, rec, http.StatusConflict)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Short", "email": "short@example.com", "password": "123",
	})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestRefresh_Rotation(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "viewer@example.com", access.RoleViewer)
	first := env.login(t, "viewer@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{
		"refreshToken": first.RefreshToken,
	})
	expectStatus(t, rec, http.StatusOK)

	var second tokenResponse
	decodeBody(t, rec, &second)
	if second.Token == "" || second.RefreshToken == "" {
		t.Fatalf("refresh response missing tokens: %+v", second)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", second.Token, nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestRefresh_ReuseRevokesFamily(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "viewer@example.com", access.RoleViewer)
	first := env.login(t, "viewer@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{"refreshToken": first.RefreshToken})
	expectStatus(t, rec, http.StatusOK)
	var second tokenResponse
	decodeBody(t, rec, &second)

	// Replaying the rotated token trips reuse detection.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{"refreshToken": first.RefreshToken})
	expectStatus(t, rec, http.StatusUnauthorized)
	var e Error
	decodeBody(t, rec, &e)
	if e.Message != "refresh token revoked" {
		t.Errorf("message = %q, want refresh token revoked", e.Message)
	}

	// The legitimate successor is revoked with the family.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{"refreshToken": second.RefreshToken})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRefresh_Invalid(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{"refreshToken": "not-a-token"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]string{})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "viewer@example.com", access.RoleViewer)
	tok := env.login(t, "viewer@example.com")

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "abc.def.ghi", http.StatusUnauthorized},
		{"valid token", tok.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/auth/me", tt.token, nil)
			expectStatus(t, rec, tt.wantStatus)
		})
	}
}

func TestAuthMiddleware_RoleReadFromDatabase(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin@example.com", access.RoleAdmin)
	other := env.createUser(t, "other@example.com", access.RoleAdmin)
	tok := env.login(t, "other@example.com")

	viewer := access.RoleViewer
	if _, err := env.svc.UpdateUser(t.Context(), other.ID, auth.UserPatch{Role: &viewer}); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	// The token still says admin, but the demotion applies immediately.
	rec := env.do(t, http.MethodPost, "/api/v1/applications", tok.Token, map[string]string{"name": "CRM"})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestWSTicket(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "viewer@example.com", access.RoleViewer)
	tok := env.login(t, "viewer@example.com")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", tok.Token, nil)
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expiresIn"`
	}
	decodeBody(t, rec, &resp)
	if resp.Ticket == "" || resp.ExpiresIn != 60 {
		t.Fatalf("ticket response = %+v", resp)
	}

	entry, ok := env.srv.tickets.consume(resp.Ticket, time.Now())
	if !ok || entry.userID != user.ID || entry.role != access.RoleViewer {
		t.Fatalf("consume() = %+v, %v", entry, ok)
	}
	if _, ok := env.srv.tickets.consume(resp.Ticket, time.Now()); ok {
		t.Error("ticket consumed twice")
	}
}

func TestTicketStore_Expiry(t *testing.T) {
	ts := newTicketStore()
	now := time.Now()

	ticket, err := ts.issue("usr-1", access.RoleAdmin, now)
	if err != nil {
		t.Fatalf("issue() error = %v", err)
	}
	if _, ok := ts.consume(ticket, now.Add(ticketTTL+time.Second)); ok {
		t.Error("expired ticket accepted")
	}

	stale, err := ts.issue("usr-2", access.RoleViewer, now)
	if err != nil {
		t.Fatalf("issue() error = %v", err)
	}
	ts.purge(now.Add(2 * ticketTTL))
	if _, ok := ts.consume(stale, now); ok {
		t.Error("purged ticket accepted")
	}
}

func TestWebSocket_RequiresTicket(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/ws", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(t, http.MethodGet, "/api/v1/ws?ticket=bogus", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}
