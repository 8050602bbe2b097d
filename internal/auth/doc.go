// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

// Package auth provides account registration, credential verification,
// session tokens and profile management.
//
// # Domain Types
//
// Users should be created with NewUser, which validates and normalizes name
// and email. Emails are stored lower-cased; uniqueness is case-insensitive
// and is ultimately enforced by the repository.
//
// User carries the password hash and must never be serialized to clients.
// Profile is the public projection returned by every Service method.
//
// # Tokens
//
// TokenManager issues HS256 JWTs whose subject is the user ID. Tokens are
// stateless: there is no server-side revocation, and logging out is a client
// concern.
//
// # Errors
//
// All errors carry an oops code. KindOf maps codes to the taxonomy used at
// the HTTP boundary:
//   - KindValidation - bad input or email already registered
//   - KindAuth - login failed (unknown email and wrong password are identical)
//   - KindToken - missing, malformed, forged or expired token
//   - KindNotFound - the authenticated user no longer exists
//   - KindInternal - everything else
package auth
