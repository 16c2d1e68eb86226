package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/appaccess/internal/infrastructure/database"
)

// ApplicationRepository persists applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id string) (*Application, error)
	List(ctx context.Context) ([]Application, error)
	Update(ctx context.Context, app *Application) error
	Delete(ctx context.Context, id string) (int, error)
}

// SQLiteApplicationRepository implements ApplicationRepository.
type SQLiteApplicationRepository struct {
	db *sql.DB
}

// NewApplicationRepository creates a SQLite-backed application repository.
func NewApplicationRepository(db *sql.DB) *SQLiteApplicationRepository {
	return &SQLiteApplicationRepository{db: db}
}

const applicationColumns = `id, name, description, color, category, url, created_at, updated_at`

// Create inserts app after normalising and validating it.
func (r *SQLiteApplicationRepository) Create(ctx context.Context, app *Application) error {
	*app = app.Normalize()
	if err := app.Validate(); err != nil {
		return err
	}
	if app.ID == "" {
		app.ID = "app-" + uuid.NewString()
	}
	now := time.Now().UTC()
	app.CreatedAt, app.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO applications (`+applicationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.Name, app.Description,
		database.NullString(app.Color), database.NullString(app.Category), database.NullString(app.URL),
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: application %s already exists", ErrValidation, app.ID)
		}
		return fmt.Errorf("creating application: %w", err)
	}
	return nil
}

// GetByID returns the application or ErrApplicationNotFound.
func (r *SQLiteApplicationRepository) GetByID(ctx context.Context, id string) (*Application, error) {
	return scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id))
}

// List returns every application ordered by name.
func (r *SQLiteApplicationRepository) List(ctx context.Context) ([]Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	apps := []Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating applications: %w", err)
	}
	return apps, nil
}

// Update replaces the mutable fields of app.
func (r *SQLiteApplicationRepository) Update(ctx context.Context, app *Application) error {
	*app = app.Normalize()
	if err := app.Validate(); err != nil {
		return err
	}
	app.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE applications SET name = ?, description = ?, color = ?, category = ?, url = ?, updated_at = ? WHERE id = ?`,
		app.Name, app.Description,
		database.NullString(app.Color), database.NullString(app.Category), database.NullString(app.URL),
		database.FormatTime(app.UpdatedAt), app.ID,
	)
	if err != nil {
		return fmt.Errorf("updating application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrApplicationNotFound
	}
	return nil
}

// Delete removes the application and all grants on it in one transaction,
// returning the number of grants removed.
func (r *SQLiteApplicationRepository) Delete(ctx context.Context, id string) (int, error) {
	var removed int64
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM permissions WHERE application_id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting permissions: %w", err)
		}
		removed, _ = res.RowsAffected() //nolint:errcheck // always succeeds on SQLite

		res, err = tx.ExecContext(ctx, "DELETE FROM applications WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting application row: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
			return ErrApplicationNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			return 0, ErrApplicationNotFound
		}
		return 0, fmt.Errorf("deleting application: %w", err)
	}
	return int(removed), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(s scanner) (*Application, error) {
	var a Application
	var color, category, link sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&a.ID, &a.Name, &a.Description, &color, &category, &link, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("scanning application: %w", err)
	}
	a.Color = color.String
	a.Category = category.String
	a.URL = link.String
	a.CreatedAt = database.ParseTime(createdAt)
	a.UpdatedAt = database.ParseTime(updatedAt)
	return &a, nil
}
