package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
)

// Application is a registered application.
type Application struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color,omitempty"`
	Category    string    `json:"category,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ApplicationInput is the payload for creating or replacing an application.
type ApplicationInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`
	Category    string `json:"category,omitempty"`
	URL         string `json:"url,omitempty"`
}

type applicationList struct {
	Applications []Application `json:"applications"`
	Count        int           `json:"count"`
}

// Applications manages registered applications.
type Applications struct {
	auth  *Authorizer
	guard *Guard
}

// NewApplications creates an Applications client.
func NewApplications(a *Authorizer, g *Guard) *Applications {
	return &Applications{auth: a, guard: g}
}

// List returns every application ordered by name.
func (c *Applications) List(ctx context.Context) ([]Application, error) {
	var out applicationList
	if err := c.auth.Do(ctx, "applications.list", http.MethodGet, "/applications", nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Applications), nil
}

// Get returns one application.
func (c *Applications) Get(ctx context.Context, id string) (*Application, error) {
	var out Application
	if err := c.auth.Do(ctx, "applications.get", http.MethodGet, "/applications/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create registers an application. Requires admin.
func (c *Applications) Create(ctx context.Context, in ApplicationInput) (*Application, error) {
	const op = "applications.create"
	if err := c.guard.Require(ctx, op, access.ActionCreateApplication); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, &Error{Op: op, Kind: ErrValidation, Message: "name is required"}
	}
	var out Application
	if err := c.auth.Do(ctx, op, http.MethodPost, "/applications", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces an application's fields. Requires admin.
func (c *Applications) Update(ctx context.Context, id string, in ApplicationInput) (*Application, error) {
	const op = "applications.update"
	if err := c.guard.Require(ctx, op, access.ActionUpdateApplication); err != nil {
		return nil, err
	}
	var out Application
	if err := c.auth.Do(ctx, op, http.MethodPut, "/applications/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an application together with its grants. Requires admin.
func (c *Applications) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	const op = "applications.delete"
	if err := c.guard.Require(ctx, op, access.ActionDeleteApplication); err != nil {
		return nil, err
	}
	var out DeleteResult
	if err := c.auth.Do(ctx, op, http.MethodDelete, "/applications/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
