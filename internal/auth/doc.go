// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package auth provides email/password authentication and server-side
// sessions for tokengate.
//
// # Credentials and Sessions
//
// A session is identified by the SHA-256 of an opaque token that is handed
// to the client exactly once. Only the derived identifier is persisted, so a
// leaked sessions table cannot be replayed as cookies.
//
// # Services
//
// Two types consume a SessionStore and never talk to each other:
//   - Service - signup, login, logout, invalidate-all
//   - Resolver - turns a request credential into a trusted Identity and
//     applies sliding renewal
//
// Both are built with constructors that reject nil dependencies. Every
// failure the Resolver produces collapses to ErrUnauthorized; the reason is
// only logged.
package auth
