package directory

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/appaccess/internal/access"
)

// Application is something users can be granted access to.
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

// Permission grants one user a level of access to one application.
type Permission struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	ApplicationID  string      `json:"applicationId"`
	PermissionType access.Role `json:"permissionType"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// EnrichedPermission carries display names alongside the grant.
type EnrichedPermission struct {
	Permission
	UserName        string `json:"userName"`
	UserEmail       string `json:"userEmail"`
	ApplicationName string `json:"applicationName"`
}

// Sentinel errors.
var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrValidation          = errors.New("validation failed")
)

// Normalize trims every text field.
func (a Application) Normalize() Application {
	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	a.Color = strings.TrimSpace(a.Color)
	a.Category = strings.TrimSpace(a.Category)
	a.URL = strings.TrimSpace(a.URL)
	return a
}

// Validate requires a name and, when set, an absolute http(s) URL.
func (a Application) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if a.URL != "" {
		u, err := url.Parse(a.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrValidation, a.URL)
		}
	}
	return nil
}

// ParsePermissionType accepts only the two grant levels. Unlike
// access.ParseRole it does not fall back, because a typo must not silently
// downgrade or upgrade a grant.
func ParsePermissionType(s string) (access.Role, error) {
	r := access.Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: permissionType must be one of admin, viewer", ErrValidation)
	}
	return r, nil
}
