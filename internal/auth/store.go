// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"context"
	"time"
)

// SessionStore persists users and sessions. Implementations classify
// constraint failures into ErrUniqueViolation, ErrPrimaryKeyViolation,
// ErrForeignKeyViolation and ErrConnection before returning them.
type SessionStore interface {
	// FindUserByEmail looks up a user case-insensitively.
	// Returns ErrNotFound if no user has the email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// InsertUser creates a user. Returns ErrUniqueViolation when the email
	// is already registered in any letter case.
	InsertUser(ctx context.Context, email string, passwordHash *string) (*User, error)

	// InsertSession creates a session row keyed by id.
	InsertSession(ctx context.Context, id string, userID int64, expiresAt time.Time) (*Session, error)

	// FindSessionWithUser loads a session and its owner in one lookup.
	// Returns ErrNotFound if the session does not exist.
	FindSessionWithUser(ctx context.Context, sessionID string) (*User, *Session, error)

	// UpdateSessionExpiry moves the expiry of a session.
	// Returns ErrNotFound if the session no longer exists.
	UpdateSessionExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error

	// DeleteSession removes one session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteAllSessionsForUser removes every session of a user and returns
	// the number removed.
	DeleteAllSessionsForUser(ctx context.Context, userID int64) (int64, error)
}

// ExpiredSessionSweeper removes sessions that expired without being observed.
type ExpiredSessionSweeper interface {
	// DeleteExpiredSessions removes sessions with expires_at <= before and
	// returns the count.
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}
