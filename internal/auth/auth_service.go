// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/tokengate/tokengate/internal/observability"
	"github.com/tokengate/tokengate/pkg/errutil"
)

// sessionInsertBackoff is the pause between session insert attempts after a
// primary key collision.
const sessionInsertBackoff = 5 * time.Millisecond

// dummyPasswordLen is the length of the random password hashed for hashers
// that do not implement DummyHasher.
const dummyPasswordLen = 32

// Service provides signup, login and session invalidation.
type Service struct {
	store  SessionStore
	hasher PasswordHasher
	codec  TokenCodec
	opts   options

	// dummyHash is verified when the account is unknown or has no password
	// so that login timing does not reveal which accounts exist. It has the
	// hasher's cost parameters and matches no password.
	dummyHash string
}

// LoginResult is returned by a successful Login. Token is the only copy of
// the client credential; it is never persisted.
type LoginResult struct {
	User    *User
	Session *Session
	Token   string
}

// NewAuthService creates a Service. All dependencies are required.
func NewAuthService(store SessionStore, hasher PasswordHasher, codec TokenCodec, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token codec is required")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	dummy, err := dummyHashFor(hasher)
	if err != nil {
		return nil, err
	}
	return &Service{store: store, hasher: hasher, codec: codec, opts: o, dummyHash: dummy}, nil
}

// dummyHashFor returns hasher's dummy hash, or the hash of a random
// password it was never given when hasher cannot produce one.
func dummyHashFor(hasher PasswordHasher) (string, error) {
	if d, ok := hasher.(DummyHasher); ok {
		return d.DummyHash(), nil
	}
	secret := make([]byte, dummyPasswordLen)
	if _, err := rand.Read(secret); err != nil {
		return "", oops.Code("AUTH_INVALID_DEPENDENCY").With("operation", "generate dummy password").Wrap(err)
	}
	hash, err := hasher.Hash(hex.EncodeToString(secret))
	if err != nil {
		return "", oops.Code("AUTH_INVALID_DEPENDENCY").With("operation", "hash dummy password").Wrap(err)
	}
	return hash, nil
}

// Signup registers a new account. It does not log the user in.
// Uniqueness is decided by the store alone; a lost race returns ErrEmailTaken.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.Signup")
	defer span.End()

	hash, err := s.hasher.Hash(password)
	if err != nil {
		observability.RecordSignup(observability.ResultError)
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := s.store.InsertUser(ctx, strings.TrimSpace(email), &hash)
	if err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			observability.RecordSignup(observability.ResultRejected)
			s.opts.logger.InfoContext(ctx, "signup rejected", "reason", "email_taken")
			return nil, oops.Code(CodeEmailTaken).Wrap(ErrEmailTaken)
		}
		observability.RecordSignup(observability.ResultError)
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	observability.RecordSignup(observability.ResultSuccess)
	s.opts.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and opens a new session.
// Unknown email, missing password hash and wrong password all return
// ErrInvalidCredentials, and all three run a full password verification.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	user, lookupErr := s.store.FindUserByEmail(ctx, strings.TrimSpace(email))

	targetHash := s.dummyHash
	reason := ""
	switch {
	case lookupErr != nil && errors.Is(lookupErr, ErrNotFound):
		reason = "unknown_email"
	case lookupErr != nil:
		observability.RecordLogin(observability.ResultError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "find user by email").
			Wrap(lookupErr)
	case user == nil:
		reason = "unknown_email"
	case !user.HasPassword():
		reason = "no_password"
	default:
		targetHash = *user.PasswordHash
	}

	valid := s.hasher.Verify(password, targetHash)
	if reason == "" && !valid {
		reason = "wrong_password"
	}
	if reason != "" {
		observability.RecordLogin(observability.ResultRejected)
		attrs := []any{"reason", reason}
		if user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}
		s.opts.logger.InfoContext(ctx, "login rejected", attrs...)
		return nil, invalidCredentials()
	}

	session, token, err := s.openSession(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrForeignKeyViolation) {
			// The account disappeared between lookup and insert.
			observability.RecordLogin(observability.ResultRejected)
			s.opts.logger.InfoContext(ctx, "login rejected", "reason", "user_vanished", "user_id", user.ID)
			return nil, invalidCredentials()
		}
		observability.RecordLogin(observability.ResultError)
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID).
			Wrap(err)
	}

	observability.RecordLogin(observability.ResultSuccess)
	s.opts.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "expires_at", session.ExpiresAt)
	return &LoginResult{User: user, Session: session, Token: token}, nil
}

// openSession issues a token and stores its session. A primary key
// collision or a missing insert result is retried with a fresh token.
func (s *Service) openSession(ctx context.Context, userID int64) (*Session, string, error) {
	expiresAt := s.opts.policy.ExpiryFrom(s.opts.now())

	var (
		session *Session
		token   string
	)
	backoff := retry.WithMaxRetries(s.opts.insertRetries, retry.NewConstant(sessionInsertBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := s.codec.GenerateToken()
		if err != nil {
			return err
		}

		inserted, err := s.store.InsertSession(ctx, s.codec.DeriveSessionID(candidate), userID, expiresAt)
		if err != nil {
			if errors.Is(err, ErrPrimaryKeyViolation) {
				s.opts.logger.WarnContext(ctx, "session id collision, retrying", "user_id", userID)
				return retry.RetryableError(err)
			}
			return err
		}
		if inserted == nil {
			return retry.RetryableError(oops.Code("SESSION_INSERT_EMPTY").Errorf("insert returned no session"))
		}

		session, token = inserted, candidate
		return nil
	})
	if err != nil {
		return nil, "", err //nolint:wrapcheck // caller classifies and wraps
	}
	return session, token, nil
}

// Logout removes a single session. Removing a missing session succeeds.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer span.End()

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// InvalidateAllSessions removes every session of the user ("log out everywhere").
func (s *Service) InvalidateAllSessions(ctx context.Context, userID int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "auth.InvalidateAllSessions")
	defer span.End()

	removed, err := s.store.DeleteAllSessionsForUser(ctx, userID)
	if err != nil {
		err = oops.Code("AUTH_INVALIDATE_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID).
			Wrap(err)
		errutil.LogError(ctx, s.opts.logger, slog.LevelError, "failed to invalidate sessions", err)
		return 0, err
	}

	s.opts.logger.InfoContext(ctx, "sessions invalidated", "user_id", userID, "count", removed)
	return removed, nil
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}
