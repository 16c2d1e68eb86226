package directory

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/infrastructure/database/dbtest"
)

func TestApplicationRepository_CRUD(t *testing.T) {
	db := testDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	app := &Application{Name: "  CRM ", Description: "Customer records", Color: "#ff0000", URL: "https://crm.example.com"}
	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if app.ID == "" || app.Name != "CRM" {
		t.Fatalf("Create() left app = %+v", app)
	}

	got, err := repo.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Color != "#ff0000" || got.URL != "https://crm.example.com" || got.Category != "" {
		t.Errorf("GetByID() = %+v", got)
	}

	got.Category = "sales"
	got.Color = ""
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	again, _ := repo.GetByID(ctx, app.ID)
	if again.Category != "sales" || again.Color != "" {
		t.Errorf("after Update() = %+v", again)
	}

	seedApp(t, db, "analytics")
	apps, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(apps) != 2 || apps[0].Name != "analytics" {
		t.Errorf("List() = %+v, want analytics first", apps)
	}
}

func TestApplicationRepository_Validation(t *testing.T) {
	repo := NewApplicationRepository(testDB(t))
	ctx := context.Background()

	tests := []struct {
		name string
		app  Application
	}{
		{"missing name", Application{Name: " "}},
		{"relative url", Application{Name: "X", URL: "/crm"}},
		{"bad scheme", Application{Name: "X", URL: "ftp://files.example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := tt.app
			if err := repo.Create(ctx, &app); !errors.Is(err, ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestApplicationRepository_NotFound(t *testing.T) {
	repo := NewApplicationRepository(testDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "app-missing"); !errors.Is(err, ErrApplicationNotFound) {
		t.Errorf("GetByID() error = %v, want ErrApplicationNotFound", err)
	}
	if err := repo.Update(ctx, &Application{ID: "app-missing", Name: "X"}); !errors.Is(err, ErrApplicationNotFound) {
		t.Errorf("Update() error = %v, want ErrApplicationNotFound", err)
	}
	if _, err := repo.Delete(ctx, "app-missing"); !errors.Is(err, ErrApplicationNotFound) {
		t.Errorf("Delete() error = %v, want ErrApplicationNotFound", err)
	}
}

func TestApplicationRepository_Delete_Cascades(t *testing.T) {
	db := testDB(t)
	apps := NewApplicationRepository(db)
	perms := NewPermissionRepository(db)
	ctx := context.Background()

	seedUser(t, db, "usr-1", "Ann")
	seedUser(t, db, "usr-2", "Ben")
	gone := seedApp(t, db, "Gone")
	kept := seedApp(t, db, "Kept")

	for _, pair := range [][2]string{{"usr-1", gone.ID}, {"usr-2", gone.ID}, {"usr-1", kept.ID}} {
		if _, _, err := perms.Set(ctx, pair[0], pair[1], access.RoleViewer); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	removed, err := apps.Delete(ctx, gone.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Delete() removed = %d, want 2", removed)
	}
	if n := dbtest.Count(t, db, "permissions", "application_id = ?", gone.ID); n != 0 {
		t.Errorf("grants on deleted application = %d, want 0", n)
	}
	if n := dbtest.Count(t, db, "permissions", ""); n != 1 {
		t.Errorf("remaining grants = %d, want 1", n)
	}
}

func TestApplicationRepository_Delete_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM permissions WHERE application_id = ?")).
		WithArgs("app-1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applications WHERE id = ?")).
		WithArgs("app-1").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	if _, err := NewApplicationRepository(db).Delete(context.Background(), "app-1"); err == nil {
		t.Fatal("Delete() error = nil, want error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
