package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/session"
)

// testServer counts requests reaching the handler.
type testServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *session.MemoryStore, *testServer) {
	t.Helper()
	ts := newTestServer(t, h)
	store := session.NewMemoryStore()
	c, err := New(ts.URL+"/api/v1", store, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, store, ts
}

func saveSession(t *testing.T, store session.Store, token string, role access.Role) {
	t.Helper()
	s := session.Session{
		Token:        token,
		RefreshToken: "refresh-" + token,
		User:         session.User{ID: "usr-1", Name: "Tess", Email: "tess@example.com", Role: role, IsActive: true},
	}
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func currentToken(t *testing.T, store session.Store) string {
	t.Helper()
	s, err := store.Current(context.Background())
	if err != nil {
		return ""
	}
	return s.Token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeCodedError(w, status, "error", message)
}

func writeCodedError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"status": status, "code": code, "message": message})
}
