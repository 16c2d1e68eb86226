package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/appaccess/internal/access"
)

// fallbackConcurrency bounds the per-user requests List issues against
// servers without the batch endpoint.
const fallbackConcurrency = 4

// Permission is a (user, application) grant enriched with display names.
type Permission struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	ApplicationID   string      `json:"applicationId"`
	PermissionType  access.Role `json:"permissionType"`
	UserName        string      `json:"userName,omitempty"`
	UserEmail       string      `json:"userEmail,omitempty"`
	ApplicationName string      `json:"applicationName,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

type permissionList struct {
	Permissions []Permission `json:"permissions"`
	Count       int          `json:"count"`
}

type setPermissionRequest struct {
	ApplicationID  string      `json:"applicationId"`
	PermissionType access.Role `json:"permissionType"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

// PermissionRegistry reads and edits permission grants.
type PermissionRegistry struct {
	auth  *Authorizer
	guard *Guard
}

// NewPermissionRegistry creates a PermissionRegistry.
func NewPermissionRegistry(a *Authorizer, g *Guard) *PermissionRegistry {
	return &PermissionRegistry{auth: a, guard: g}
}

// List returns every grant. Servers without the batch endpoint are queried
// user by user.
func (r *PermissionRegistry) List(ctx context.Context) ([]Permission, error) {
	var out permissionList
	err := r.auth.Do(ctx, "permissions.list", http.MethodGet, "/permissions", nil, &out)
	if err == nil {
		return nonNil(out.Permissions), nil
	}
	if st := StatusOf(err); st != http.StatusNotFound && st != http.StatusMethodNotAllowed {
		return nil, err
	}
	return r.listPerUser(ctx)
}

func (r *PermissionRegistry) listPerUser(ctx context.Context) ([]Permission, error) {
	var users userList
	if err := r.auth.Do(ctx, "permissions.list", http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	var apps applicationList
	if err := r.auth.Do(ctx, "permissions.list", http.MethodGet, "/applications", nil, &apps); err != nil {
		return nil, err
	}
	appNames := make(map[string]string, len(apps.Applications))
	for _, a := range apps.Applications {
		appNames[a.ID] = a.Name
	}

	perUser := make([][]Permission, len(users.Users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fallbackConcurrency)
	for i, u := range users.Users {
		g.Go(func() error {
			perms, err := r.ListForUser(gctx, u.ID)
			if err != nil {
				return err
			}
			for j := range perms {
				if perms[j].UserName == "" {
					perms[j].UserName = u.Name
				}
				if perms[j].UserEmail == "" {
					perms[j].UserEmail = u.Email
				}
				if perms[j].ApplicationName == "" {
					perms[j].ApplicationName = appNames[perms[j].ApplicationID]
				}
			}
			perUser[i] = perms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []Permission{}
	for _, perms := range perUser {
		all = append(all, perms...)
	}
	return all, nil
}

// ListForUser returns the grants held by userID.
func (r *PermissionRegistry) ListForUser(ctx context.Context, userID string) ([]Permission, error) {
	var out permissionList
	path := "/users/" + url.PathEscape(userID) + "/permissions"
	if err := r.auth.Do(ctx, "permissions.list_for_user", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Permissions), nil
}

// ListForApplication returns the grants on appID.
func (r *PermissionRegistry) ListForApplication(ctx context.Context, appID string) ([]Permission, error) {
	var out permissionList
	path := "/applications/" + url.PathEscape(appID) + "/permissions"
	if err := r.auth.Do(ctx, "permissions.list_for_application", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Permissions), nil
}

// Get returns the grant userID holds on appID. A pair without a grant
// yields ErrNotFound.
func (r *PermissionRegistry) Get(ctx context.Context, userID, appID string) (*Permission, error) {
	const op = "permissions.get"
	if userID == "" || appID == "" {
		return nil, &Error{Op: op, Kind: ErrValidation, Message: "user and application are required"}
	}

	var p Permission
	path := "/users/" + url.PathEscape(userID) + "/permissions/" + url.PathEscape(appID)
	if err := r.auth.Do(ctx, op, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Set grants level on appID to userID, replacing any existing grant for
// the pair. Requires admin.
func (r *PermissionRegistry) Set(ctx context.Context, userID, appID string, level access.Role) (*Permission, error) {
	const op = "permissions.set"
	if err := r.guard.Require(ctx, op, access.ActionSetPermission); err != nil {
		return nil, err
	}
	if userID == "" || appID == "" {
		return nil, &Error{Op: op, Kind: ErrValidation, Message: "user and application are required"}
	}
	if !level.IsValid() {
		return nil, &Error{Op: op, Kind: ErrValidation, Message: "permission type must be admin or viewer"}
	}

	var p Permission
	path := "/users/" + url.PathEscape(userID) + "/permissions"
	body := setPermissionRequest{ApplicationID: appID, PermissionType: level}
	if err := r.auth.Do(ctx, op, http.MethodPost, path, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Remove revokes userID's grant on appID. Removing a grant that does not
// exist succeeds. Requires admin.
func (r *PermissionRegistry) Remove(ctx context.Context, userID, appID string) error {
	const op = "permissions.remove"
	if err := r.guard.Require(ctx, op, access.ActionRemovePermission); err != nil {
		return err
	}
	path := "/users/" + url.PathEscape(userID) + "/permissions/" + url.PathEscape(appID)
	err := r.auth.Do(ctx, op, http.MethodDelete, path, nil, nil)
	if errors.Is(err, ErrNotFound) && CodeOf(err) == CodePermissionNotFound {
		return nil
	}
	return err
}

// RemoveAllForUser revokes every grant held by userID and returns how many
// were removed. Requires admin.
func (r *PermissionRegistry) RemoveAllForUser(ctx context.Context, userID string) (int, error) {
	const op = "permissions.remove_all_for_user"
	return r.removeAll(ctx, op, "/users/"+url.PathEscape(userID)+"/permissions")
}

// RemoveAllForApplication revokes every grant on appID and returns how many
// were removed. Requires admin.
func (r *PermissionRegistry) RemoveAllForApplication(ctx context.Context, appID string) (int, error) {
	const op = "permissions.remove_all_for_application"
	return r.removeAll(ctx, op, "/applications/"+url.PathEscape(appID)+"/permissions")
}

func (r *PermissionRegistry) removeAll(ctx context.Context, op, path string) (int, error) {
	if err := r.guard.Require(ctx, op, access.ActionRemovePermission); err != nil {
		return 0, err
	}
	var out removedResponse
	if err := r.auth.Do(ctx, op, http.MethodDelete, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
