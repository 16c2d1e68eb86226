package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/session"
)

// User is an account as the server reports it.
type User = session.User

// Registration is the payload for creating an account through Register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// tokenResponse is the body of a login or refresh response. User is only
// present on login.
type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	User         User   `json:"user"`
}

const refreshFlight = "refresh"

// Gateway drives the session lifecycle: login, logout, register and
// refresh.
type Gateway struct {
	auth   *Authorizer
	store  session.Store
	flight singleflight.Group
}

// NewGateway creates a Gateway that saves sessions to the Authorizer's
// store.
func NewGateway(a *Authorizer) *Gateway {
	return &Gateway{auth: a, store: a.Store()}
}

// Login exchanges credentials for a session and saves it. On any failure
// the previously stored session is left as it was.
func (g *Gateway) Login(ctx context.Context, email, password string) (*session.Session, error) {
	const op = "login"

	var resp tokenResponse
	err := g.auth.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/login",
		body:   credentials{Email: email, Password: password},
		out:    &resp,
		entry:  true,
	})
	if err != nil {
		if st := StatusOf(err); st == http.StatusUnauthorized || st == http.StatusForbidden {
			return nil, &Error{Op: op, Kind: ErrInvalidCredentials, Status: st}
		}
		return nil, err
	}
	if resp.Token == "" {
		return nil, &Error{Op: op, Kind: ErrProtocol, Status: http.StatusOK, Message: "response carried no token"}
	}

	// The server matches emails case-insensitively; keep the address as the
	// user typed it.
	if typed := strings.TrimSpace(email); strings.EqualFold(resp.User.Email, typed) {
		resp.User.Email = typed
	}

	s := session.Session{Token: resp.Token, RefreshToken: resp.RefreshToken, User: resp.User}
	if err := g.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("client: %s: saving session: %w", op, err)
	}
	return &s, nil
}

// Logout clears the local session. No request is sent; the refresh token
// stays valid on the server until it expires.
func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.store.Clear(ctx); err != nil {
		return fmt.Errorf("client: logout: %w", err)
	}
	return nil
}

// Register creates a viewer account. It does not log the new user in.
func (g *Gateway) Register(ctx context.Context, r Registration) (*User, error) {
	var u User
	err := g.auth.do(ctx, call{
		op:     "register",
		method: http.MethodPost,
		path:   "/auth/register",
		body:   r,
		out:    &u,
		entry:  true,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Me fetches the profile of the current session's user from the server.
func (g *Gateway) Me(ctx context.Context) (*User, error) {
	var u User
	if err := g.auth.Do(ctx, "me", http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Current returns the stored session or ErrNoActiveSession.
func (g *Gateway) Current(ctx context.Context) (*session.Session, error) {
	s, err := g.store.Current(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, newError("session", ErrNoActiveSession)
		}
		return nil, &Error{Op: "session", Kind: ErrNoActiveSession, Err: err}
	}
	return s, nil
}

// IsAdmin reports whether the current session belongs to an admin.
func (g *Gateway) IsAdmin(ctx context.Context) bool {
	s, err := g.store.Current(ctx)
	return err == nil && RoleOf(s) == access.RoleAdmin
}

// RefreshToken exchanges the stored refresh token for a new access token.
//
// Concurrent callers share a single request and observe the same result.
// The request runs detached from the caller's cancellation, bounded by the
// Authorizer timeout, so a caller giving up never leaves the store half
// updated. A rejected refresh token logs the session out and yields
// ErrSessionExpired. Network failures keep the session.
func (g *Gateway) RefreshToken(ctx context.Context) (*session.Session, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(refreshFlight, func() (any, error) {
		return g.refresh(detached)
	})

	select {
	case <-ctx.Done():
		return nil, &Error{Op: "refresh", Kind: ErrNetworkUnreachable, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s := *res.Val.(*session.Session)
		return &s, nil
	}
}

func (g *Gateway) refresh(ctx context.Context) (*session.Session, error) {
	const op = "refresh"

	cur, err := g.store.Current(ctx)
	if err != nil || cur.RefreshToken == "" {
		return nil, newError(op, ErrNoActiveSession)
	}

	var resp tokenResponse
	err = g.auth.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/refresh-token",
		body:   refreshRequest{RefreshToken: cur.RefreshToken},
		out:    &resp,
		entry:  true,
	})
	if err != nil {
		if rejected(err) {
			g.dropIfUnchanged(ctx, cur.RefreshToken)
			return nil, &Error{Op: op, Kind: ErrSessionExpired, Status: StatusOf(err)}
		}
		return nil, err
	}
	if resp.Token == "" {
		return nil, &Error{Op: op, Kind: ErrProtocol, Status: http.StatusOK, Message: "response carried no token"}
	}

	next := session.Session{Token: resp.Token, RefreshToken: cur.RefreshToken, User: cur.User}
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}

	// A logout or a new login while the request was in flight wins.
	swapped, err := g.store.CompareAndSwap(ctx, session.HasRefreshToken(cur.RefreshToken), &next)
	if err != nil {
		return nil, fmt.Errorf("client: %s: saving session: %w", op, err)
	}
	if !swapped {
		latest, err := g.store.Current(ctx)
		if err != nil {
			return nil, newError(op, ErrNoActiveSession)
		}
		return latest, nil
	}
	return &next, nil
}

// dropIfUnchanged clears the store if it still holds refreshToken.
func (g *Gateway) dropIfUnchanged(ctx context.Context, refreshToken string) {
	if _, err := g.store.CompareAndSwap(ctx, session.HasRefreshToken(refreshToken), nil); err != nil {
		g.auth.logger.Warn("clearing expired session failed", "error", err)
	}
}

// rejected reports whether the server answered and refused the request.
func rejected(err error) bool {
	switch KindOf(err) {
	case ErrSessionInvalidated, ErrForbidden, ErrValidation, ErrNotFound:
		return true
	default:
		return false
	}
}
