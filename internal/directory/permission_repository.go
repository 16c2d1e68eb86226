package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/infrastructure/database"
)

// PermissionRepository persists (user, application) grants.
type PermissionRepository interface {
	Set(ctx context.Context, userID, applicationID string, level access.Role) (*Permission, bool, error)
	Get(ctx context.Context, userID, applicationID string) (*Permission, error)
	Remove(ctx context.Context, userID, applicationID string) (bool, error)
	RemoveAllForUser(ctx context.Context, userID string) (int, error)
	RemoveAllForApplication(ctx context.Context, applicationID string) (int, error)
	List(ctx context.Context) ([]EnrichedPermission, error)
	ListForUser(ctx context.Context, userID string) ([]EnrichedPermission, error)
	ListForApplication(ctx context.Context, applicationID string) ([]EnrichedPermission, error)
}

// ErrPermissionNotFound is returned by Get when the pair has no grant.
var ErrPermissionNotFound = errors.New("permission not found")

// SQLitePermissionRepository implements PermissionRepository.
type SQLitePermissionRepository struct {
	db *sql.DB
}

// NewPermissionRepository creates a SQLite-backed permission repository.
func NewPermissionRepository(db *sql.DB) *SQLitePermissionRepository {
	return &SQLitePermissionRepository{db: db}
}

// Set upserts the grant for (userID, applicationID). An existing row keeps
// its ID and creation time; created reports whether a new row was inserted.
// Concurrent calls for the same pair resolve to the last writer.
func (r *SQLitePermissionRepository) Set(ctx context.Context, userID, applicationID string, level access.Role) (*Permission, bool, error) {
	if !level.IsValid() {
		return nil, false, fmt.Errorf("%w: permissionType must be one of admin, viewer", ErrValidation)
	}

	p := &Permission{UserID: userID, ApplicationID: applicationID, PermissionType: level}
	newID := "prm-" + uuid.NewString()
	now := time.Now().UTC()

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, "users", userID, ErrUserNotFound); err != nil {
			return err
		}
		if err := exists(ctx, tx, "applications", applicationID, ErrApplicationNotFound); err != nil {
			return err
		}

		var createdAt string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO permissions (id, user_id, application_id, permission_type, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, application_id) DO UPDATE SET
			     permission_type = excluded.permission_type,
			     updated_at      = excluded.updated_at
			 RETURNING id, created_at`,
			newID, userID, applicationID, level.String(),
			database.FormatTime(now), database.FormatTime(now),
		).Scan(&p.ID, &createdAt)
		if err != nil {
			return fmt.Errorf("upserting permission: %w", err)
		}
		p.CreatedAt = database.ParseTime(createdAt)
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrApplicationNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("setting permission: %w", err)
	}
	return p, p.ID == newID, nil
}

// Get returns the grant for the pair or ErrPermissionNotFound.
func (r *SQLitePermissionRepository) Get(ctx context.Context, userID, applicationID string) (*Permission, error) {
	var p Permission
	var level, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, application_id, permission_type, created_at, updated_at
		 FROM permissions WHERE user_id = ? AND application_id = ?`, userID, applicationID,
	).Scan(&p.ID, &p.UserID, &p.ApplicationID, &level, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("getting permission: %w", err)
	}
	p.PermissionType = access.ParseRole(level)
	p.CreatedAt = database.ParseTime(createdAt)
	p.UpdatedAt = database.ParseTime(updatedAt)
	return &p, nil
}

// Remove deletes the grant for the pair. A missing grant is not an error;
// removed reports whether a row existed.
func (r *SQLitePermissionRepository) Remove(ctx context.Context, userID, applicationID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM permissions WHERE user_id = ? AND application_id = ?", userID, applicationID)
	if err != nil {
		return false, fmt.Errorf("removing permission: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n > 0, nil
}

// RemoveAllForUser deletes every grant held by userID.
func (r *SQLitePermissionRepository) RemoveAllForUser(ctx context.Context, userID string) (int, error) {
	return r.removeWhere(ctx, "user_id", userID)
}

// RemoveAllForApplication deletes every grant on applicationID.
func (r *SQLitePermissionRepository) RemoveAllForApplication(ctx context.Context, applicationID string) (int, error) {
	return r.removeWhere(ctx, "application_id", applicationID)
}

func (r *SQLitePermissionRepository) removeWhere(ctx context.Context, column, value string) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM permissions WHERE "+column+" = ?", value) //nolint:gosec // column is a constant
	if err != nil {
		return 0, fmt.Errorf("removing permissions by %s: %w", column, err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return int(n), nil
}

const enrichedSelect = `
	SELECT p.id, p.user_id, p.application_id, p.permission_type, p.created_at, p.updated_at,
	       u.name, u.email, a.name
	FROM permissions p
	JOIN users u ON u.id = p.user_id
	JOIN applications a ON a.id = p.application_id`

// List returns every grant with user and application names.
func (r *SQLitePermissionRepository) List(ctx context.Context) ([]EnrichedPermission, error) {
	return r.query(ctx, enrichedSelect+` ORDER BY u.name COLLATE NOCASE, a.name COLLATE NOCASE`)
}

// ListForUser returns the grants held by userID.
func (r *SQLitePermissionRepository) ListForUser(ctx context.Context, userID string) ([]EnrichedPermission, error) {
	return r.query(ctx, enrichedSelect+` WHERE p.user_id = ? ORDER BY a.name COLLATE NOCASE`, userID)
}

// ListForApplication returns the grants on applicationID.
func (r *SQLitePermissionRepository) ListForApplication(ctx context.Context, applicationID string) ([]EnrichedPermission, error) {
	return r.query(ctx, enrichedSelect+` WHERE p.application_id = ? ORDER BY u.name COLLATE NOCASE`, applicationID)
}

func (r *SQLitePermissionRepository) query(ctx context.Context, query string, args ...any) ([]EnrichedPermission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	out := []EnrichedPermission{}
	for rows.Next() {
		var e EnrichedPermission
		var level, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.ApplicationID, &level, &createdAt, &updatedAt,
			&e.UserName, &e.UserEmail, &e.ApplicationName); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		e.PermissionType = access.ParseRole(level)
		e.CreatedAt = database.ParseTime(createdAt)
		e.UpdatedAt = database.ParseTime(updatedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return out, nil
}

func exists(ctx context.Context, tx *sql.Tx, table, id string, notFound error) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one) //nolint:gosec // table is a constant
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", table, err)
	}
	return nil
}
