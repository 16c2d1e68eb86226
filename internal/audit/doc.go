// Package audit records who changed what. Every mutation made through the
// REST API (account, application and grant changes, plus sign-ins) appends
// one row to audit_logs; admins page through them via GET /audit.
package audit
