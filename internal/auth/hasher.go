// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id defaults.
const (
	DefaultArgon2MemoryKiB   = 64 * 1024 // 64 MB
	DefaultArgon2Iterations  = 1
	DefaultArgon2Parallelism = 4

	argon2SaltLen = 16
	argon2KeyLen  = 32

	// Upper bound accepted from a stored hash; anything larger is treated as malformed.
	maxArgon2MemoryKiB = 4 * 1024 * 1024
)

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the encoded hash.
	// A malformed hash is indistinguishable from a mismatch.
	Verify(password, encodedHash string) bool
}

// DummyHasher is implemented by hashers that can produce a hash which
// matches no password but costs as much to verify as a real one.
type DummyHasher interface {
	DummyHash() string
}

// Argon2Params are the cost parameters used when producing new hashes.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2Params returns the OWASP-recommended parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   DefaultArgon2MemoryKiB,
		Iterations:  DefaultArgon2Iterations,
		Parallelism: DefaultArgon2Parallelism,
	}
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher. Zero-valued params fall back to the defaults.
func NewArgon2idHasher(params Argon2Params) *Argon2idHasher {
	defaults := DefaultArgon2Params()
	if params.MemoryKiB == 0 {
		params.MemoryKiB = defaults.MemoryKiB
	}
	if params.Iterations == 0 {
		params.Iterations = defaults.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = defaults.Parallelism
	}
	return &Argon2idHasher{params: params}
}

// Params returns the parameters used for new hashes.
func (h *Argon2idHasher) Params() Argon2Params {
	return h.params
}

// Hash produces a PHC-formatted argon2id hash of the password:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").
			With("requested_bytes", argon2SaltLen).
			Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, argon2KeyLen)
	return h.encode(salt, key), nil
}

func (h *Argon2idHasher) encode(salt, key []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// DummyHash returns a hash with this hasher's parameters and an all-zero
// salt and key. Verifying it takes as long as verifying a real hash and
// no password matches it.
func (h *Argon2idHasher) DummyHash() string {
	return h.encode(make([]byte, argon2SaltLen), make([]byte, argon2KeyLen))
}

// Verify recomputes the key with the parameters stored in encodedHash and
// compares in constant time.
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	decoded, err := decodeArgon2idHash(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), decoded.salt, decoded.iterations, decoded.memory, decoded.parallelism, uint32(len(decoded.key)))
	return subtle.ConstantTimeCompare(computed, decoded.key) == 1
}

type argon2idHash struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodeArgon2idHash(encoded string) (*argon2idHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	// argon2.IDKey panics on zero rounds or zero threads.
	if iterations == 0 || threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid cost parameters t=%d p=%d", iterations, threads)
	}
	if memory == 0 || memory > maxArgon2MemoryKiB {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid memory parameter: %d", memory)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length: %d", len(key))
	}

	return &argon2idHash{
		memory:      memory,
		iterations:  iterations,
		parallelism: uint8(threads),
		salt:        salt,
		key:         key,
	}, nil
}
