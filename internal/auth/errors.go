// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import "errors"

// Store classifications. SessionStore implementations wrap these so callers
// can match with errors.Is without knowing the driver.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUniqueViolation is returned when a unique index rejects a write.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrPrimaryKeyViolation is returned when a row with the same primary key exists.
	ErrPrimaryKeyViolation = errors.New("primary key violation")

	// ErrForeignKeyViolation is returned when a referenced row does not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrConnection is returned when the store cannot be reached.
	ErrConnection = errors.New("store unavailable")
)

// Boundary errors returned by Service and Resolver.
var (
	// ErrInvalidCredentials never distinguishes an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned by Signup when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUnauthorized is the single outcome of every failed authorization.
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes attached to boundary errors.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
)
