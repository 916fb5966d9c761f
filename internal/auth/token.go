// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/samber/oops"
)

// SessionTokenBytes is the amount of entropy in an issued token (256 bits).
const SessionTokenBytes = 32

// TokenCodec issues client tokens and derives the storage key for them.
type TokenCodec interface {
	// GenerateToken returns a fresh random token for the client.
	GenerateToken() (string, error)

	// DeriveSessionID returns the one-way identifier under which the
	// session for token is stored.
	DeriveSessionID(token string) string
}

// SHA256TokenCodec issues hex tokens from crypto/rand and keys sessions by
// the hex SHA-256 of the token.
type SHA256TokenCodec struct {
	entropy io.Reader
}

// NewSHA256TokenCodec creates a codec backed by crypto/rand.
func NewSHA256TokenCodec() *SHA256TokenCodec {
	return &SHA256TokenCodec{entropy: rand.Reader}
}

// NewSHA256TokenCodecWithReader creates a codec that reads entropy from r.
func NewSHA256TokenCodecWithReader(r io.Reader) *SHA256TokenCodec {
	return &SHA256TokenCodec{entropy: r}
}

// GenerateToken returns SessionTokenBytes random bytes, hex-encoded.
func (c *SHA256TokenCodec) GenerateToken() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := io.ReadFull(c.entropy, buf); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "read entropy").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// DeriveSessionID computes the hex SHA-256 of token. The output is always
// 64 characters.
func (c *SHA256TokenCodec) DeriveSessionID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
