package directory

import (
	"database/sql"
	"testing"
	"time"

	"github.com/nerrad567/appaccess/internal/infrastructure/database"
	"github.com/nerrad567/appaccess/internal/infrastructure/database/dbtest"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbtest.Open(t)
}

func seedUser(t *testing.T, db *sql.DB, id, name string) {
	t.Helper()
	now := database.FormatTime(time.Now())
	_, err := db.ExecContext(t.Context(),
		`INSERT INTO users (id, name, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, 'x', 'viewer', 1, ?, ?)`, id, name, id+"@example.com", now, now)
	if err != nil {
		t.Fatalf("seeding user %s: %v", id, err)
	}
}

func seedApp(t *testing.T, db *sql.DB, name string) *Application {
	t.Helper()
	app := &Application{Name: name}
	if err := NewApplicationRepository(db).Create(t.Context(), app); err != nil {
		t.Fatalf("seeding application %s: %v", name, err)
	}
	return app
}
