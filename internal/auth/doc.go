// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides credential hashing and cookie-backed sessions for trainhub.
//
// # Domain Types
//
//   - User - an account identified by a ULID and a normalized, unique email
//   - Session - a server-side login record keyed by an unguessable identifier
//   - SessionCookie - the cookie that carries a session identifier to the client
//
// Stored credentials have the form "<digestHex>:<saltHex>" and are produced by a
// PasswordHasher. Emails are normalized with NormalizeEmail before any lookup or write.
//
// # Services
//
//   - SessionManager - creates, validates, refreshes and destroys sessions
//   - Service - signup, login and logout over users, the hasher and the manager
//   - Sweeper - periodically removes expired sessions from a SessionStore
//
// Cookies are never written through ambient state. Every operation that emits a
// cookie takes the request's CookieTransport explicitly.
package auth
