// Package auth implements server-side authentication for the access service.
//
// It covers:
//   - Argon2id password hashing in PHC format
//   - HS256 access tokens whose "sid" claim carries the refresh-token family
//   - Refresh-token rotation with family-based reuse detection
//   - The users table, including the cascading delete that removes a user's
//     permission grants and refresh tokens in one transaction
//
// Login failures are deliberately uniform: an unknown email, a wrong
// password and an inactive account all surface as ErrInvalidCredentials.
package auth
