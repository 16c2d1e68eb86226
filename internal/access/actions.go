package access

// Action names an operation that can be gated by role.
type Action string

// Read actions.
const (
	ActionViewUsers        Action = "users:read"
	ActionViewApplications Action = "applications:read"
	ActionViewPermissions  Action = "permissions:read"
	ActionViewProfile      Action = "profile:read"
)

// Mutating actions. All of them are admin-only.
const (
	ActionCreateUser        Action = "users:create"
	ActionUpdateUser        Action = "users:update"
	ActionDeleteUser        Action = "users:delete"
	ActionCreateApplication Action = "applications:create"
	ActionUpdateApplication Action = "applications:update"
	ActionDeleteApplication Action = "applications:delete"
	ActionSetPermission     Action = "permissions:set"
	ActionRemovePermission  Action = "permissions:remove"
	ActionViewAudit         Action = "audit:read"
)

// viewerSafe is the single list of actions any authenticated session may
// perform. Everything else needs RoleAdmin.
var viewerSafe = map[Action]bool{
	ActionViewUsers:        true,
	ActionViewApplications: true,
	ActionViewPermissions:  true,
	ActionViewProfile:      true,
}

// IsViewerSafe reports whether a is open to every authenticated role.
func IsViewerSafe(a Action) bool {
	return viewerSafe[a]
}

// Allows reports whether role may perform a. Unknown roles are evaluated as
// viewer, so an unknown action combined with an unknown role is denied.
func Allows(role Role, a Action) bool {
	if viewerSafe[a] {
		return true
	}
	return ParseRole(string(role)) == RoleAdmin
}

// AdminActions returns every action that requires RoleAdmin.
func AdminActions() []Action {
	return []Action{
		ActionCreateUser,
		ActionUpdateUser,
		ActionDeleteUser,
		ActionCreateApplication,
		ActionUpdateApplication,
		ActionDeleteApplication,
		ActionSetPermission,
		ActionRemovePermission,
		ActionViewAudit,
	}
}
