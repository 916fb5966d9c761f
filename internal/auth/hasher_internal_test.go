// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/pkg/errutil"
)

func TestDecodeArgon2idHash(t *testing.T) {
	t.Run("parses parameters", func(t *testing.T) {
		decoded, err := decodeArgon2idHash("$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHQ$aGFzaGhhc2g")
		require.NoError(t, err)
		assert.Equal(t, uint32(65536), decoded.memory)
		assert.Equal(t, uint32(3), decoded.iterations)
		assert.Equal(t, uint8(2), decoded.parallelism)
		assert.Equal(t, []byte("saltsalt"), decoded.salt)
		assert.Equal(t, []byte("hashhash"), decoded.key)
	})

	t.Run("errors carry AUTH_INVALID_HASH", func(t *testing.T) {
		_, err := decodeArgon2idHash("$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
		assert.Contains(t, err.Error(), "unsupported hash algorithm")
	})
}

func TestArgon2idHasher_DummyHash(t *testing.T) {
	params := Argon2Params{MemoryKiB: 2048, Iterations: 3, Parallelism: 2}
	h := NewArgon2idHasher(params)

	decoded, err := decodeArgon2idHash(h.DummyHash())
	require.NoError(t, err)
	assert.Equal(t, params.MemoryKiB, decoded.memory)
	assert.Equal(t, params.Iterations, decoded.iterations)
	assert.Equal(t, params.Parallelism, decoded.parallelism)
	assert.Len(t, decoded.key, argon2KeyLen)
	assert.Len(t, decoded.salt, argon2SaltLen)

	assert.False(t, h.Verify("", h.DummyHash()))
	assert.False(t, h.Verify("password", h.DummyHash()))
	assert.Equal(t, h.DummyHash(), h.DummyHash(), "dummy hash is stable")
}
