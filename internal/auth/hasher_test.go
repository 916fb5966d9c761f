// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/internal/auth"
)

// cheapParams keeps argon2 fast in tests.
var cheapParams = auth.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1}

func TestHashPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher(cheapParams)

	t.Run("produces PHC encoded argon2id hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)
		assert.Len(t, strings.Split(hash, "$"), 6)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("empty password is hashed", func(t *testing.T) {
		hash, err := hasher.Hash("")
		require.NoError(t, err)
		assert.True(t, hasher.Verify("", hash))
		assert.False(t, hasher.Verify(" ", hash))
	})
}

func TestNewArgon2idHasher_DefaultsZeroFields(t *testing.T) {
	h := auth.NewArgon2idHasher(auth.Argon2Params{Iterations: 2})
	assert.Equal(t, auth.Argon2Params{
		MemoryKiB:   auth.DefaultArgon2MemoryKiB,
		Iterations:  2,
		Parallelism: auth.DefaultArgon2Parallelism,
	}, h.Params())
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher(cheapParams)
	hash, err := hasher.Hash("correctpassword")
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		assert.True(t, hasher.Verify("correctpassword", hash))
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		assert.False(t, hasher.Verify("wrongpassword", hash))
		assert.False(t, hasher.Verify("Correctpassword", hash))
	})

	t.Run("hash from other parameters still verifies", func(t *testing.T) {
		other := auth.NewArgon2idHasher(auth.Argon2Params{MemoryKiB: 2048, Iterations: 2, Parallelism: 2})
		otherHash, err := other.Hash("correctpassword")
		require.NoError(t, err)
		assert.True(t, hasher.Verify("correctpassword", otherHash))
	})

	malformed := []struct {
		name string
		hash string
	}{
		{"not a hash", "not-a-valid-hash"},
		{"empty", ""},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"bcrypt", "$2a$10$N9qo8uLOickgx2ZMRZoMyeIvNq.Uf3hE9tQALNP1Qn9sNp5x5x5x5"},
		{"bad version", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"unsupported version", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"bad parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA"},
		{"bad key", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!"},
		{"threads overflow", "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA"},
		{"zero iterations", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA"},
		{"huge memory", fmt.Sprintf("$argon2id$v=19$m=%d,t=1,p=4$c2FsdA$aGFzaA", uint32(1<<31))},
	}
	for _, tt := range malformed {
		t.Run("malformed "+tt.name+" is a mismatch", func(t *testing.T) {
			assert.False(t, hasher.Verify("password", tt.hash))
		})
	}
}
