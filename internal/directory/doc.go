// Package directory stores applications and the per-application permission
// grants that link users to them.
//
// A grant is unique per (user, application). Setting a grant for a pair that
// already has one updates it in place and keeps its ID. Deleting an
// application removes its grants in the same transaction.
package directory
