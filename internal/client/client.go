package client

import "github.com/nerrad567/appaccess/internal/session"

// Client bundles the SDK components over one Authorizer and session store.
type Client struct {
	Auth         *Gateway
	Users        *Users
	Applications *Applications
	Permissions  *PermissionRegistry
	Guard        *Guard

	authorizer *Authorizer
}

// New creates a Client for the API at baseURL.
func New(baseURL string, store session.Store, opts ...Option) (*Client, error) {
	a, err := NewAuthorizer(baseURL, store, opts...)
	if err != nil {
		return nil, err
	}
	guard := NewGuard(store)
	return &Client{
		Auth:         NewGateway(a),
		Users:        NewUsers(a, guard),
		Applications: NewApplications(a, guard),
		Permissions:  NewPermissionRegistry(a, guard),
		Guard:        guard,
		authorizer:   a,
	}, nil
}

// Authorizer returns the underlying Authorizer.
func (c *Client) Authorizer() *Authorizer {
	return c.authorizer
}
