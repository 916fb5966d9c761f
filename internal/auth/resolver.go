// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/tokengate/tokengate/internal/observability"
	"github.com/tokengate/tokengate/pkg/errutil"
)

// Scheme names how a credential reached the server.
type Scheme string

// Supported credential schemes.
const (
	// SchemeCookie is the session cookie issued at login.
	SchemeCookie Scheme = "cookie"

	// SchemeBearer is an Authorization: Bearer header. It is declared so
	// clients can try it, but no bearer tokens are issued yet and
	// Resolve always rejects it.
	SchemeBearer Scheme = "bearer"
)

// Credential is the raw secret extracted from a request.
type Credential struct {
	Scheme Scheme
	Token  string
}

// Identity is the trusted result of a successful authorization.
type Identity struct {
	User    *User
	Session *Session

	// Renewed is true when this resolution extended the session expiry.
	Renewed bool
}

// Reasons an authorization was rejected. Logged only.
const (
	rejectMissingToken      = "missing_token"
	rejectBearerUnsupported = "bearer_unsupported"
	rejectUnknownScheme     = "unknown_scheme"
	rejectNotFound          = "session_not_found"
	rejectExpired           = "session_expired"
	rejectLookupFailed      = "lookup_failed"
	rejectRenewFailed       = "renew_failed"
)

// Resolver turns request credentials into identities.
type Resolver struct {
	store SessionStore
	codec TokenCodec
	opts  options
}

// NewResolver creates a Resolver. All dependencies are required.
func NewResolver(store SessionStore, codec TokenCodec, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token codec is required")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Resolver{store: store, codec: codec, opts: o}, nil
}

// Resolve authorizes a credential. Expired sessions are deleted on sight and
// sessions inside the renewal window are extended before returning. Every
// failure returns ErrUnauthorized.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (*Identity, error) {
	ctx, span := tracer.Start(ctx, "auth.Resolve")
	defer span.End()

	switch cred.Scheme {
	case SchemeCookie:
	case SchemeBearer:
		return nil, r.reject(ctx, rejectBearerUnsupported, nil)
	default:
		return nil, r.reject(ctx, rejectUnknownScheme, nil)
	}
	if cred.Token == "" {
		return nil, r.reject(ctx, rejectMissingToken, nil)
	}

	sessionID := r.codec.DeriveSessionID(cred.Token)

	user, session, err := r.store.FindSessionWithUser(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, r.reject(ctx, rejectNotFound, nil)
		}
		return nil, r.reject(ctx, rejectLookupFailed, err)
	}

	now := r.opts.now()

	if session.IsExpiredAt(now) {
		if delErr := r.store.DeleteSession(ctx, session.ID); delErr != nil {
			errutil.LogError(ctx, r.opts.logger, slog.LevelWarn, "failed to delete expired session",
				oops.Code("SESSION_EXPIRE_DELETE_FAILED").With("user_id", session.UserID).Wrap(delErr))
		}
		observability.RecordSessionExpired()
		return nil, r.reject(ctx, rejectExpired, nil, "user_id", session.UserID)
	}

	renewed := false
	if session.NeedsRenewalAt(now, r.opts.policy.RenewWindow) {
		newExpiry := r.opts.policy.ExpiryFrom(now)
		if err := r.store.UpdateSessionExpiry(ctx, session.ID, newExpiry); err != nil {
			return nil, r.reject(ctx, rejectRenewFailed, err, "user_id", session.UserID)
		}
		renewed = true
		renewedSession := *session
		renewedSession.ExpiresAt = newExpiry
		renewedSession.UpdatedAt = now
		session = &renewedSession
		observability.RecordSessionRenewed()
		r.opts.logger.DebugContext(ctx, "session renewed", "user_id", session.UserID, "expires_at", newExpiry)
	}

	observability.RecordAuthorization(observability.ResultSuccess)
	return &Identity{User: user, Session: session, Renewed: renewed}, nil
}

// reject logs the internal reason and returns the uniform boundary error.
func (r *Resolver) reject(ctx context.Context, reason string, cause error, attrs ...any) error {
	if cause != nil {
		observability.RecordAuthorization(observability.ResultError)
		errutil.LogError(ctx, r.opts.logger, slog.LevelError, "authorization failed",
			oops.With(append([]any{"reason", reason}, attrs...)...).Wrap(cause))
	} else {
		observability.RecordAuthorization(observability.ResultRejected)
		r.opts.logger.DebugContext(ctx, "authorization rejected", append([]any{"reason", reason}, attrs...)...)
	}
	return oops.Code(CodeUnauthorized).Wrap(ErrUnauthorized)
}
