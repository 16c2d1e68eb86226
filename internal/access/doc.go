// Package access defines the role and action model shared by the server's
// authorisation middleware and the client's AccessGuard.
//
// There are exactly two flat roles, admin and viewer. An action is allowed
// when it is viewer-safe or the caller is an admin. Anything that cannot be
// resolved to a known role is treated as viewer.
package access
