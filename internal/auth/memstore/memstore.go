// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package memstore is an in-process auth.SessionStore for development and
// tests. It enforces the same uniqueness and reference rules as the
// PostgreSQL schema.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/tokengate/tokengate/internal/auth"
)

// Store keeps users and sessions in maps guarded by one lock.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	users    map[int64]*auth.User
	byEmail  map[string]int64
	sessions map[string]*auth.Session
}

// New creates an empty Store. now stamps created/updated times; nil uses
// time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		users:    make(map[int64]*auth.User),
		byEmail:  make(map[string]int64),
		sessions: make(map[string]*auth.Session),
	}
}

// FindUserByEmail looks up a user case-insensitively.
func (s *Store) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("USER_LOOKUP_FAILED").With("operation", "find user by email").Wrap(auth.ErrNotFound)
	}
	return copyUser(s.users[id]), nil
}

// InsertUser creates a user.
func (s *Store) InsertUser(_ context.Context, email string, passwordHash *string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := auth.NormalizeEmail(email)
	if _, taken := s.byEmail[key]; taken {
		return nil, oops.Code("USER_INSERT_FAILED").With("operation", "insert user").Wrap(auth.ErrUniqueViolation)
	}

	s.nextID++
	now := s.now()
	user := &auth.User{
		ID:        s.nextID,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if passwordHash != nil {
		h := *passwordHash
		user.PasswordHash = &h
	}
	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return copyUser(user), nil
}

// InsertSession creates a session keyed by id.
func (s *Store) InsertSession(_ context.Context, id string, userID int64, expiresAt time.Time) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; exists {
		return nil, oops.Code("SESSION_INSERT_FAILED").With("user_id", userID).Wrap(auth.ErrPrimaryKeyViolation)
	}
	if _, ok := s.users[userID]; !ok {
		return nil, oops.Code("SESSION_INSERT_FAILED").With("user_id", userID).Wrap(auth.ErrForeignKeyViolation)
	}

	now := s.now()
	session := &auth.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[id] = session
	cp := *session
	return &cp, nil
}

// FindSessionWithUser loads a session and its owner.
func (s *Store) FindSessionWithUser(_ context.Context, sessionID string) (*auth.User, *auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil, oops.Code("SESSION_LOOKUP_FAILED").Wrap(auth.ErrNotFound)
	}
	user, ok := s.users[session.UserID]
	if !ok {
		return nil, nil, oops.Code("SESSION_LOOKUP_FAILED").Wrap(auth.ErrNotFound)
	}
	cp := *session
	return copyUser(user), &cp, nil
}

// UpdateSessionExpiry moves the expiry of a session.
func (s *Store) UpdateSessionExpiry(_ context.Context, sessionID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("operation", "update session expiry").Wrap(auth.ErrNotFound)
	}
	session.ExpiresAt = expiresAt
	session.UpdatedAt = s.now()
	return nil
}

// DeleteSession removes one session. A missing session is not an error.
func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// DeleteAllSessionsForUser removes every session of a user.
func (s *Store) DeleteAllSessionsForUser(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhere(func(sess *auth.Session) bool { return sess.UserID == userID }), nil
}

// DeleteExpiredSessions removes sessions that expired at or before before.
func (s *Store) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteWhere(func(sess *auth.Session) bool { return !sess.ExpiresAt.After(before) }), nil
}

// DeleteUser removes a user and, like ON DELETE CASCADE, its sessions.
func (s *Store) DeleteUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	delete(s.byEmail, auth.NormalizeEmail(user.Email))
	delete(s.users, userID)
	s.deleteWhere(func(sess *auth.Session) bool { return sess.UserID == userID })
	return nil
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// deleteWhere must be called with mu held.
func (s *Store) deleteWhere(match func(*auth.Session) bool) int64 {
	var removed int64
	for id, sess := range s.sessions {
		if match(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func copyUser(u *auth.User) *auth.User {
	cp := *u
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		cp.PasswordHash = &h
	}
	return &cp
}

var (
	_ auth.SessionStore          = (*Store)(nil)
	_ auth.ExpiredSessionSweeper = (*Store)(nil)
)
