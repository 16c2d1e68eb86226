// Package api implements the HTTP REST API and WebSocket server for the
// application access service.
//
// This package provides:
//   - Login, registration and refresh-token rotation under /api/v1/auth
//   - CRUD for users and applications
//   - Permission lookup and upsert by (user, application), and bulk removal
//   - An audit trail endpoint for administrators
//   - A WebSocket hub broadcasting access-change events
//   - Middleware for request IDs, logging, recovery, CORS and rate limiting
//
// # Security
//
// Every route except health, metrics and the auth entry points requires a
// bearer access token. Mutations require the admin role; viewers may read.
// WebSocket connections authenticate with single-use tickets so the access
// token never appears in a URL.
//
// # Errors
//
// Errors are returned as {"status", "code", "message"}. Validation failures
// use 422, duplicate emails 409, missing records 404. A pair without a
// grant answers 404 with code permission_not_found.
package api
