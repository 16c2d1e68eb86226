// Package session holds the client's authenticated session.
//
// A Store is the single owner of the Session value. Every other component
// reads it through Current on each use, so a logout or refresh is visible
// everywhere at once. A Session is either absent or carries a non-empty
// token; stored values without one are discarded on read.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
)

// Sentinel errors.
var (
	ErrNoSession      = errors.New("session: no active session")
	ErrInvalidSession = errors.New("session: token is required")
)

// User is the account profile as the server returned it at login.
type User struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      access.Role `json:"role"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Session is an authenticated client state.
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         User   `json:"user"`
}

// Valid reports whether s can be treated as authenticated.
func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}

// Store persists the current session.
type Store interface {
	// Save atomically replaces the stored session.
	Save(ctx context.Context, s Session) error

	// Current returns the stored session or ErrNoSession. A malformed stored
	// value is cleared and reported as ErrNoSession.
	Current(ctx context.Context) (*Session, error)

	// Clear removes the session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	// CompareAndSwap replaces the stored session with next, or clears it
	// when next is nil, only if a session is stored and match accepts it.
	// The check and the write are one atomic step. It reports whether the
	// store changed.
	CompareAndSwap(ctx context.Context, match func(Session) bool, next *Session) (bool, error)
}

// HasToken matches a stored session whose access token is token.
func HasToken(token string) func(Session) bool {
	return func(s Session) bool { return s.Token == token }
}

// HasRefreshToken matches a stored session whose refresh token is token.
func HasRefreshToken(token string) func(Session) bool {
	return func(s Session) bool { return s.RefreshToken == token }
}

func encode(s Session) ([]byte, error) {
	if s.Token == "" {
		return nil, ErrInvalidSession
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return b, nil
}

// decode returns ErrNoSession for anything that is not a usable session.
func decode(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil || !s.Valid() {
		return nil, ErrNoSession
	}
	return &s, nil
}
