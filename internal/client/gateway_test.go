package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/session"
)

func loginHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login sent Authorization header")
		}
		var body credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if body.Password != "password123" {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        "access-1",
			"refreshToken": "refresh-1",
			"expiresIn":    900,
			"user":         map[string]any{"id": "usr-9", "name": "Ada", "email": strings.ToLower(strings.TrimSpace(body.Email)), "role": "admin", "isActive": true},
		})
	}
}

func TestGateway_Login(t *testing.T) {
	c, store, _ := newTestClient(t, loginHandler(t))
	ctx := context.Background()

	s, err := c.Auth.Login(ctx, "ada@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.Token != "access-1" || s.RefreshToken != "refresh-1" {
		t.Errorf("session = %+v", s)
	}
	if s.User.Email != "ada@example.com" || s.User.Role != access.RoleAdmin {
		t.Errorf("user = %+v", s.User)
	}
	if got := currentToken(t, store); got != "access-1" {
		t.Errorf("stored token = %q, want access-1", got)
	}
	if !c.Auth.IsAdmin(ctx) {
		t.Error("IsAdmin() = false, want true")
	}
}

func TestGateway_LoginKeepsTypedEmail(t *testing.T) {
	c, store, _ := newTestClient(t, loginHandler(t))
	ctx := context.Background()

	s, err := c.Auth.Login(ctx, "Ada@Example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if s.User.Email != "Ada@Example.com" {
		t.Errorf("session email = %q, want Ada@Example.com", s.User.Email)
	}
	stored, err := store.Current(ctx)
	if err != nil || stored.User.Email != "Ada@Example.com" {
		t.Errorf("stored session = %+v, %v", stored, err)
	}
}

func TestGateway_LoginFailureKeepsPriorSession(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
			},
			want: ErrInvalidCredentials,
		},
		{
			name: "missing token",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "usr-1"}})
			},
			want: ErrProtocol,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusInternalServerError, "database unavailable")
			},
			want: ErrServer,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusBadRequest, "email is required")
			},
			want: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, _ := newTestClient(t, tt.handler)
			saveSession(t, store, "prior", access.RoleViewer)

			_, err := c.Auth.Login(context.Background(), "ada@example.com", "nope")
			if !errors.Is(err, tt.want) {
				t.Fatalf("Login() error = %v, want %v", err, tt.want)
			}
			if got := currentToken(t, store); got != "prior" {
				t.Errorf("stored token = %q, want prior", got)
			}
		})
	}
}

func TestGateway_LoginUnreachable(t *testing.T) {
	c, store, ts := newTestClient(t, loginHandler(t))
	ts.Close()

	_, err := c.Auth.Login(context.Background(), "ada@example.com", "password123")
	if !errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("Login() error = %v, want ErrNetworkUnreachable", err)
	}
	if _, err := store.Current(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Current() error = %v, want ErrNoSession", err)
	}
}

func TestGateway_LogoutMakesNoRequest(t *testing.T) {
	c, store, ts := newTestClient(t, loginHandler(t))
	saveSession(t, store, "tok", access.RoleAdmin)
	ctx := context.Background()

	if err := c.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if err := c.Auth.Logout(ctx); err != nil {
		t.Fatalf("second Logout() error = %v", err)
	}
	if ts.hits.Load() != 0 {
		t.Errorf("requests = %d, want 0", ts.hits.Load())
	}
	if c.Guard.IsAuthenticated(ctx) {
		t.Error("IsAuthenticated() = true after logout")
	}
	if _, err := c.Auth.Current(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Current() error = %v, want ErrNoActiveSession", err)
	}
}

func TestGateway_RegisterDoesNotLogIn(t *testing.T) {
	c, store, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["role"]; ok {
			t.Errorf("register body carries a role: %v", body)
		}
		if body["email"] == "taken@example.com" {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": "usr-2", "name": body["name"], "email": body["email"], "role": "viewer", "isActive": true})
	}))
	ctx := context.Background()

	u, err := c.Auth.Register(ctx, Registration{Name: "Bo", Email: "bo@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.ID != "usr-2" || u.Role != access.RoleViewer {
		t.Errorf("user = %+v", u)
	}
	if _, err := store.Current(ctx); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("Current() error = %v, want ErrNoSession", err)
	}

	_, err = c.Auth.Register(ctx, Registration{Name: "Bo", Email: "taken@example.com", Password: "password123"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Register(duplicate) error = %v, want ErrValidation", err)
	}
}

// refreshServer answers refresh requests with an incrementing token.
func refreshServer(t *testing.T, calls *atomic.Int64, gate <-chan struct{}, entered chan<- struct{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/refresh-token" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		n := calls.Add(1)
		if entered != nil {
			entered <- struct{}{}
		}
		if gate != nil {
			<-gate
		}
		var body refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.RefreshToken == "revoked" {
			writeError(w, http.StatusUnauthorized, "refresh token revoked")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":        "access-" + string(rune('0'+n)),
			"refreshToken": "rotated",
			"expiresIn":    900,
		})
	}
}

func TestGateway_RefreshToken(t *testing.T) {
	var calls atomic.Int64
	c, store, _ := newTestClient(t, refreshServer(t, &calls, nil, nil))
	saveSession(t, store, "old", access.RoleAdmin)
	ctx := context.Background()

	s, err := c.Auth.RefreshToken(ctx)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if s.Token != "access-1" || s.RefreshToken != "rotated" {
		t.Errorf("session = %+v", s)
	}
	if s.User.ID != "usr-1" || s.User.Role != access.RoleAdmin {
		t.Errorf("user profile not kept: %+v", s.User)
	}
	if got := currentToken(t, store); got != "access-1" {
		t.Errorf("stored token = %q, want access-1", got)
	}
}

func TestGateway_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	c, store, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "access-2", "expiresIn": 900})
	}))
	saveSession(t, store, "old", access.RoleViewer)

	s, err := c.Auth.RefreshToken(context.Background())
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if s.RefreshToken != "refresh-old" {
		t.Errorf("RefreshToken = %q, want refresh-old", s.RefreshToken)
	}
}

func TestGateway_RefreshWithoutSession(t *testing.T) {
	var calls atomic.Int64
	c, store, ts := newTestClient(t, refreshServer(t, &calls, nil, nil))
	ctx := context.Background()

	if _, err := c.Auth.RefreshToken(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("RefreshToken() error = %v, want ErrNoActiveSession", err)
	}

	// A session without a refresh token cannot be refreshed either.
	if err := store.Save(ctx, session.Session{Token: "only-access"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := c.Auth.RefreshToken(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("RefreshToken() error = %v, want ErrNoActiveSession", err)
	}
	if ts.hits.Load() != 0 {
		t.Errorf("requests = %d, want 0", ts.hits.Load())
	}
}

func TestGateway_RefreshRejectedLogsOut(t *testing.T) {
	var calls atomic.Int64
	c, store, _ := newTestClient(t, refreshServer(t, &calls, nil, nil))
	ctx := context.Background()
	if err := store.Save(ctx, session.Session{Token: "old", RefreshToken: "revoked"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_, err := c.Auth.RefreshToken(ctx)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("RefreshToken() error = %v, want ErrSessionExpired", err)
	}
	if c.Guard.IsAuthenticated(ctx) {
		t.Error("IsAuthenticated() = true after rejected refresh")
	}
	if UserMessage(err) != "Your session has expired. Please login again." {
		t.Errorf("UserMessage() = %q", UserMessage(err))
	}
}

func TestGateway_RefreshServerErrorKeepsSession(t *testing.T) {
	c, store, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusBadGateway, "upstream down")
	}))
	saveSession(t, store, "old", access.RoleViewer)

	if _, err := c.Auth.RefreshToken(context.Background()); !errors.Is(err, ErrServer) {
		t.Fatalf("RefreshToken() error = %v, want ErrServer", err)
	}
	if got := currentToken(t, store); got != "old" {
		t.Errorf("stored token = %q, want old", got)
	}
}

func TestGateway_RefreshSingleFlight(t *testing.T) {
	var calls atomic.Int64
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	c, store, _ := newTestClient(t, refreshServer(t, &calls, gate, entered))
	saveSession(t, store, "old", access.RoleAdmin)
	ctx := context.Background()

	const callers = 5
	results := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s, err := c.Auth.RefreshToken(ctx)
		errs[0] = err
		if s != nil {
			results[0] = s.Token
		}
	}()
	<-entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Auth.RefreshToken(ctx)
			errs[i] = err
			if s != nil {
				results[i] = s.Token
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("refresh requests = %d, want 1", calls.Load())
	}
	for i := range callers {
		if errs[i] != nil {
			t.Errorf("caller %d error = %v", i, errs[i])
		}
		if results[i] != "access-1" {
			t.Errorf("caller %d token = %q, want access-1", i, results[i])
		}
	}
}

func TestGateway_RefreshCancelledCallerKeepsSession(t *testing.T) {
	var calls atomic.Int64
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	c, store, _ := newTestClient(t, refreshServer(t, &calls, gate, entered))
	saveSession(t, store, "old", access.RoleAdmin)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Auth.RefreshToken(ctx)
		done <- err
	}()
	<-entered
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RefreshToken() error = %v, want context.Canceled", err)
	}
	if got := currentToken(t, store); got != "old" {
		t.Errorf("stored token after cancel = %q, want old", got)
	}

	// The shared request still completes and lands in the store.
	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for currentToken(t, store) != "access-1" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := currentToken(t, store); got != "access-1" {
		t.Errorf("stored token = %q, want access-1", got)
	}
}

func TestGateway_RefreshDiscardedAfterLogout(t *testing.T) {
	var calls atomic.Int64
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	c, store, _ := newTestClient(t, refreshServer(t, &calls, gate, entered))
	saveSession(t, store, "old", access.RoleAdmin)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Auth.RefreshToken(ctx)
		done <- err
	}()
	<-entered
	if err := c.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	close(gate)

	if err := <-done; !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("RefreshToken() error = %v, want ErrNoActiveSession", err)
	}
	if c.Guard.IsAuthenticated(ctx) {
		t.Error("refresh resurrected a logged-out session")
	}
}

// swapHookStore runs beforeSwap just ahead of every CompareAndSwap, which is
// the point where a concurrent logout would otherwise be overwritten.
type swapHookStore struct {
	*session.MemoryStore
	beforeSwap func()
}

func (s *swapHookStore) CompareAndSwap(ctx context.Context, match func(session.Session) bool, next *session.Session) (bool, error) {
	if s.beforeSwap != nil {
		s.beforeSwap()
	}
	return s.MemoryStore.CompareAndSwap(ctx, match, next)
}

func TestGateway_RefreshLosesToLogoutBeforeSave(t *testing.T) {
	var calls atomic.Int64
	ts := newTestServer(t, refreshServer(t, &calls, nil, nil))
	store := &swapHookStore{MemoryStore: session.NewMemoryStore()}
	c, err := New(ts.URL+"/api/v1", store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	saveSession(t, store, "old", access.RoleAdmin)
	ctx := context.Background()

	store.beforeSwap = func() {
		if err := c.Auth.Logout(ctx); err != nil {
			t.Errorf("Logout() error = %v", err)
		}
	}

	if _, err := c.Auth.RefreshToken(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("RefreshToken() error = %v, want ErrNoActiveSession", err)
	}
	if s, err := store.Current(ctx); err == nil {
		t.Errorf("session present after logout: token=%q", s.Token)
	}
}

func TestGateway_RefreshKeepsNewerLogin(t *testing.T) {
	var calls atomic.Int64
	ts := newTestServer(t, refreshServer(t, &calls, nil, nil))
	store := &swapHookStore{MemoryStore: session.NewMemoryStore()}
	c, err := New(ts.URL+"/api/v1", store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	saveSession(t, store, "old", access.RoleAdmin)
	ctx := context.Background()

	store.beforeSwap = func() { saveSession(t, store.MemoryStore, "fresh", access.RoleViewer) }

	s, err := c.Auth.RefreshToken(ctx)
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if s.Token != "fresh" || currentToken(t, store) != "fresh" {
		t.Errorf("refresh replaced a newer login: returned %q, stored %q", s.Token, currentToken(t, store))
	}
}
