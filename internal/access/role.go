package access

import "strings"

// Role is an account's authorisation tier. The same two values are used as
// the permission type on a (user, application) grant.
type Role string

const (
	// RoleAdmin may read everything and perform every mutation.
	RoleAdmin Role = "admin"

	// RoleViewer may only read. It is also the fallback for unknown roles.
	RoleViewer Role = "viewer"
)

// ValidRoles lists every role an account or grant may carry.
var ValidRoles = []Role{RoleAdmin, RoleViewer}

// IsValid reports whether r is one of ValidRoles.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// ParseRole normalises s to a Role. Case and surrounding space are ignored;
// anything unrecognised yields RoleViewer.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r.IsValid() {
		return r
	}
	return RoleViewer
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
