// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package postgres implements the auth session store on PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/tokengate/tokengate/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the store uses. pgxmock
// satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements auth.SessionStore and auth.ExpiredSessionSweeper.
type Store struct {
	pool poolIface
}

// NewStore creates a Store on pool.
func NewStore(pool poolIface) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, email, password_hash, created_at, updated_at`

// FindUserByEmail looks up a user case-insensitively.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
	`, email)

	user, err := scanUser(row)
	if err != nil {
		return nil, oops.Code("USER_LOOKUP_FAILED").
			With("operation", "find user by email").
			Wrap(classify(err))
	}
	return user, nil
}

// InsertUser creates a user row.
func (s *Store) InsertUser(ctx context.Context, email string, passwordHash *string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING `+userColumns, email, passwordHash)

	user, err := scanUser(row)
	if err != nil {
		return nil, oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			Wrap(classify(err))
	}
	return user, nil
}

// InsertSession creates a session row keyed by id.
func (s *Store) InsertSession(ctx context.Context, id string, userID int64, expiresAt time.Time) (*auth.Session, error) {
	var session auth.Session
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, expires_at, created_at, updated_at
	`, id, userID, expiresAt).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, oops.Code("SESSION_INSERT_FAILED").
			With("operation", "insert session").
			With("user_id", userID).
			Wrap(classify(err))
	}
	return &session, nil
}

// FindSessionWithUser loads a session and its owner with one join.
func (s *Store) FindSessionWithUser(ctx context.Context, sessionID string) (*auth.User, *auth.Session, error) {
	var (
		user    auth.User
		session auth.Session
	)
	err := s.pool.QueryRow(ctx, `
		SELECT s.id, s.user_id, s.expires_at, s.created_at, s.updated_at,
		       u.id, u.email, u.password_hash, u.created_at, u.updated_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, nil, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "find session with user").
			Wrap(classify(err))
	}
	return &user, &session, nil
}

// UpdateSessionExpiry moves the expiry of a session.
func (s *Store) UpdateSessionExpiry(ctx context.Context, sessionID string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET expires_at = $2, updated_at = now()
		WHERE id = $1
	`, sessionID, expiresAt)
	if err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").
			With("operation", "update session expiry").
			Wrap(classify(err))
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("operation", "update session expiry").
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteSession removes one session. A missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(classify(err))
	}
	return nil
}

// DeleteAllSessionsForUser removes every session of a user.
func (s *Store) DeleteAllSessionsForUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID).
			Wrap(classify(err))
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredSessions removes sessions that expired at or before before.
func (s *Store) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(classify(err))
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var user auth.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers classify and wrap
	}
	return &user, nil
}

var (
	_ auth.SessionStore          = (*Store)(nil)
	_ auth.ExpiredSessionSweeper = (*Store)(nil)
)
