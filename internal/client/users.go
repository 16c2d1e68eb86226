package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nerrad567/appaccess/internal/access"
)

// NewUser is the payload for Users.Create.
type NewUser struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     access.Role `json:"role,omitempty"`
}

// UserUpdate carries the fields to change. Nil fields are left as they are.
type UserUpdate struct {
	Name     *string      `json:"name,omitempty"`
	Email    *string      `json:"email,omitempty"`
	Password *string      `json:"password,omitempty"`
	Role     *access.Role `json:"role,omitempty"`
	IsActive *bool        `json:"isActive,omitempty"`
}

type userList struct {
	Users []User `json:"users"`
	Count int    `json:"count"`
}

// DeleteResult reports what a cascading delete removed.
type DeleteResult struct {
	ID                 string `json:"id"`
	PermissionsRemoved int    `json:"permissionsRemoved"`
}

// Users manages accounts.
type Users struct {
	auth  *Authorizer
	guard *Guard
}

// NewUsers creates a Users client.
func NewUsers(a *Authorizer, g *Guard) *Users {
	return &Users{auth: a, guard: g}
}

// List returns every account.
func (u *Users) List(ctx context.Context) ([]User, error) {
	var out userList
	if err := u.auth.Do(ctx, "users.list", http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Users), nil
}

// Get returns one account.
func (u *Users) Get(ctx context.Context, id string) (*User, error) {
	var out User
	if err := u.auth.Do(ctx, "users.get", http.MethodGet, "/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds an account. Requires admin.
func (u *Users) Create(ctx context.Context, nu NewUser) (*User, error) {
	const op = "users.create"
	if err := u.guard.Require(ctx, op, access.ActionCreateUser); err != nil {
		return nil, err
	}
	if nu.Role != "" && !nu.Role.IsValid() {
		return nil, &Error{Op: op, Kind: ErrValidation, Message: "role must be admin or viewer"}
	}
	var out User
	if err := u.auth.Do(ctx, op, http.MethodPost, "/users", nu, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update changes an account. Requires admin.
func (u *Users) Update(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	const op = "users.update"
	if err := u.guard.Require(ctx, op, access.ActionUpdateUser); err != nil {
		return nil, err
	}
	var out User
	if err := u.auth.Do(ctx, op, http.MethodPut, "/users/"+url.PathEscape(id), upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an account together with its grants. Requires admin.
func (u *Users) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	const op = "users.delete"
	if err := u.guard.Require(ctx, op, access.ActionDeleteUser); err != nil {
		return nil, err
	}
	var out DeleteResult
	if err := u.auth.Do(ctx, op, http.MethodDelete, "/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
