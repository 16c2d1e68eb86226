package auth

import (
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/infrastructure/database/dbtest"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbtest.Open(t)
}

func newTestService(t *testing.T, db *sql.DB, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithHasher(NewHasher(testArgon))}, opts...)
	svc, err := NewService(NewUserRepository(db), NewTokenRepository(db),
		NewTokenIssuer(testSecret, 15*time.Minute), opts...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

// seedTestUser creates an active account whose password is "password123".
func seedTestUser(t *testing.T, db *sql.DB, email string, role access.Role) *User {
	t.Helper()

	hash, err := NewHasher(testArgon).Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	user := &User{Name: email, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	if err := NewUserRepository(db).Create(t.Context(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
