package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/audit"
	"github.com/nerrad567/appaccess/internal/auth"
	"github.com/nerrad567/appaccess/internal/directory"
	"github.com/nerrad567/appaccess/internal/events"
	"github.com/nerrad567/appaccess/internal/infrastructure/config"
	"github.com/nerrad567/appaccess/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/appaccess/internal/infrastructure/logging"
)

const (
	testSecret   = "api-test-secret-that-is-at-least-32-characters"
	testPassword = "password123"
)

var testArgon = auth.ArgonParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}

// testEnv is a server backed by a throwaway database.
type testEnv struct {
	db      *sql.DB
	srv     *Server
	handler http.Handler
	svc     *auth.Service
	apps    *directory.SQLiteApplicationRepository
	perms   *directory.SQLitePermissionRepository
	events  []events.Event
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	users := auth.NewUserRepository(db)
	svc, err := auth.NewService(users, auth.NewTokenRepository(db),
		auth.NewTokenIssuer(testSecret, 15*time.Minute),
		auth.WithHasher(auth.NewHasher(testArgon)))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	env := &testEnv{
		db:    db,
		svc:   svc,
		apps:  directory.NewApplicationRepository(db),
		perms: directory.NewPermissionRepository(db),
	}
	fanout := events.NewFanout(nil, events.PublisherFunc(func(_ context.Context, ev events.Event) error {
		env.events = append(env.events, ev)
		return nil
	}))

	deps := Deps{
		Config:       config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:       logging.Discard(),
		Auth:         svc,
		Users:        users,
		Applications: env.apps,
		Permissions:  env.perms,
		Audit:        audit.NewSQLiteRepository(db),
		Events:       fanout,
		Version:      "test",
	}
	for _, m := range mutate {
		m(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	env.handler = srv.Handler()
	return env
}

// createUser adds an active account with testPassword.
func (e *testEnv) createUser(t *testing.T, email string, role access.Role) *auth.User {
	t.Helper()
	u, err := e.svc.CreateUser(t.Context(), auth.Profile{Name: "User " + email, Email: email, Password: testPassword}, role)
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	return u
}

// createApp adds an application directly through the repository.
func (e *testEnv) createApp(t *testing.T, name string) *directory.Application {
	t.Helper()
	app := &directory.Application{Name: name}
	if err := e.apps.Create(t.Context(), app); err != nil {
		t.Fatalf("creating application %s: %v", name, err)
	}
	return app
}

// login returns the token pair for email via the HTTP endpoint.
func (e *testEnv) login(t *testing.T, email string) tokenResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s status = %d, body = %s", email, rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	decodeBody(t, rec, &resp)
	return resp
}

// do sends a request through the full router.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}
