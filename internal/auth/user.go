// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"strings"
	"time"
)

// User is an account that can log in with email and password.
type User struct {
	ID           int64
	Email        string
	PasswordHash *string // nil for accounts created without a password
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account has a usable password hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// NormalizeEmail returns the form used for case-insensitive uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
