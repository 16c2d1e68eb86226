package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/appaccess/internal/infrastructure/database"
)

// TokenRepository persists refresh tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	Rotate(ctx context.Context, oldID string, next *RefreshToken) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository on the refresh_tokens table.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken returns the hex SHA-256 of a raw refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

const tokenColumns = `id, user_id, family_id, token_hash, device_info, expires_at, revoked, created_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts token, assigning ID, FamilyID and CreatedAt when empty.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

func insertToken(ctx context.Context, ex execer, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = "rt-" + uuid.NewString()
	}
	if token.FamilyID == "" {
		token.FamilyID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	_, err := ex.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.FamilyID, token.TokenHash,
		database.NullString(token.DeviceInfo),
		database.FormatTime(token.ExpiresAt),
		database.BoolToInt(token.Revoked),
		database.FormatTime(token.CreatedAt),
	)
	return err
}

// GetByTokenHash looks up a token by hash. Revoked and expired rows are
// returned as-is so the caller can tell reuse apart from an unknown token.
func (r *SQLiteTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var t RefreshToken
	var deviceInfo sql.NullString
	var revoked int
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.ID, &t.UserID, &t.FamilyID, &t.TokenHash, &deviceInfo, &expiresAt, &revoked, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting refresh token: %w", err)
	}

	t.DeviceInfo = deviceInfo.String
	t.Revoked = revoked != 0
	t.ExpiresAt = database.ParseTime(expiresAt)
	t.CreatedAt = database.ParseTime(createdAt)
	return &t, nil
}

// RevokeFamily revokes every token descended from one login.
func (r *SQLiteTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE family_id = ?", familyID); err != nil {
		return fmt.Errorf("revoking token family: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every token belonging to userID.
func (r *SQLiteTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("revoking tokens for user: %w", err)
	}
	return nil
}

// Rotate revokes oldID and inserts next in one transaction. The revoke is
// conditional, so of two concurrent rotations of the same token only one
// succeeds; the loser gets ErrTokenRevoked.
func (r *SQLiteTokenRepository) Rotate(ctx context.Context, oldID string, next *RefreshToken) error {
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE refresh_tokens SET revoked = 1 WHERE id = ? AND revoked = 0", oldID)
		if err != nil {
			return fmt.Errorf("revoking old token: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
			return ErrTokenRevoked
		}
		if err := insertToken(ctx, tx, next); err != nil {
			return fmt.Errorf("inserting rotated token: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			return ErrTokenRevoked
		}
		return fmt.Errorf("rotating refresh token: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that expired before now and reports how many.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", database.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}
