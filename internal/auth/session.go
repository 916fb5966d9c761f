// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Session lifetime defaults.
const (
	DefaultSessionTTL  = 30 * 24 * time.Hour
	DefaultRenewWindow = 15 * 24 * time.Hour
)

// Session is a server-side login keyed by the derived token identifier.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpiredAt reports whether the session is no longer valid at t.
// A session is valid strictly before ExpiresAt.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// NeedsRenewalAt reports whether t falls inside the trailing renewal window.
func (s *Session) NeedsRenewalAt(t time.Time, window time.Duration) bool {
	return !t.Before(s.ExpiresAt.Add(-window))
}

// SessionPolicy controls session lifetime and sliding renewal.
type SessionPolicy struct {
	// TTL is the lifetime granted at login and on each renewal.
	TTL time.Duration

	// RenewWindow is how long before expiry a used session gets extended.
	RenewWindow time.Duration
}

// DefaultSessionPolicy returns a 30 day lifetime renewed in the last 15 days.
func DefaultSessionPolicy() SessionPolicy {
	return SessionPolicy{TTL: DefaultSessionTTL, RenewWindow: DefaultRenewWindow}
}

// Validate checks that the renewal window sits inside the lifetime.
func (p SessionPolicy) Validate() error {
	if p.TTL <= 0 {
		return oops.Code("SESSION_POLICY_INVALID").With("ttl", p.TTL).Errorf("session ttl must be positive")
	}
	if p.RenewWindow < 0 || p.RenewWindow >= p.TTL {
		return oops.Code("SESSION_POLICY_INVALID").
			With("ttl", p.TTL).
			With("renew_window", p.RenewWindow).
			Errorf("renew window must be non-negative and shorter than ttl")
	}
	return nil
}

// ExpiryFrom returns the expiry for a session issued or renewed at now.
func (p SessionPolicy) ExpiryFrom(now time.Time) time.Time {
	return now.Add(p.TTL)
}
