package client

import (
	"context"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/session"
)

// Guard answers role questions about a session. It never talks to the
// server; the server re-checks every mutation.
type Guard struct {
	store session.Store
}

// NewGuard creates a Guard over store.
func NewGuard(store session.Store) *Guard {
	return &Guard{store: store}
}

// Current returns the current session, or nil when there is none.
func (g *Guard) Current(ctx context.Context) *session.Session {
	s, err := g.store.Current(ctx)
	if err != nil {
		return nil
	}
	return s
}

// IsAuthenticated reports whether a session with a token exists.
func (g *Guard) IsAuthenticated(ctx context.Context) bool {
	return g.Current(ctx).Valid()
}

// Require returns nil when the current session may perform a. A missing
// session or an insufficient role yields ErrForbidden.
func (g *Guard) Require(ctx context.Context, op string, a access.Action) error {
	s := g.Current(ctx)
	if !s.Valid() {
		return &Error{Op: op, Kind: ErrForbidden, Message: "login required"}
	}
	if !CanPerform(a, s) {
		return &Error{Op: op, Kind: ErrForbidden, Message: "admin role required"}
	}
	return nil
}

// RoleOf returns the role of s. A nil session or an unrecognised role
// evaluates to viewer.
func RoleOf(s *session.Session) access.Role {
	if s == nil {
		return access.RoleViewer
	}
	return access.ParseRole(string(s.User.Role))
}

// CanPerform reports whether s may perform a. Unauthenticated sessions may
// perform nothing.
func CanPerform(a access.Action, s *session.Session) bool {
	if !s.Valid() {
		return false
	}
	return access.Allows(RoleOf(s), a)
}
