package auth

import (
	"errors"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
)

// User is an account that can sign in. Email is the login identifier and is
// unique without regard to case.
type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"` // never serialised
	Role         access.Role `json:"role"`
	IsActive     bool        `json:"isActive"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// RefreshToken is a stored refresh credential. Only the SHA-256 hash of the
// raw token is persisted. Tokens issued from one login share a FamilyID.
type RefreshToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	FamilyID   string    `json:"familyId"`
	TokenHash  string    `json:"-"` // never serialised
	DeviceInfo string    `json:"deviceInfo,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrEmailExists        = errors.New("email already registered")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
	ErrValidation         = errors.New("validation failed")
)
