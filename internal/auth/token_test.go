// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/internal/auth"
	"github.com/tokengate/tokengate/pkg/errutil"
)

func TestGenerateToken(t *testing.T) {
	codec := auth.NewSHA256TokenCodec()

	t.Run("generates 32 random bytes hex encoded", func(t *testing.T) {
		token, err := codec.GenerateToken()
		require.NoError(t, err)
		assert.Len(t, token, 64)
		raw, err := hex.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, auth.SessionTokenBytes)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			token, err := codec.GenerateToken()
			require.NoError(t, err)
			assert.False(t, seen[token], "duplicate token")
			seen[token] = true
		}
	})

	t.Run("uses the supplied entropy", func(t *testing.T) {
		fixed := bytes.Repeat([]byte{0xab}, auth.SessionTokenBytes)
		token, err := auth.NewSHA256TokenCodecWithReader(bytes.NewReader(fixed)).GenerateToken()
		require.NoError(t, err)
		assert.Equal(t, hex.EncodeToString(fixed), token)
	})

	t.Run("short entropy fails", func(t *testing.T) {
		_, err := auth.NewSHA256TokenCodecWithReader(bytes.NewReader([]byte{1, 2, 3})).GenerateToken()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_GENERATE_FAILED")
	})

	t.Run("entropy read error fails", func(t *testing.T) {
		_, err := auth.NewSHA256TokenCodecWithReader(iotest.ErrReader(errors.New("no entropy"))).GenerateToken()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_GENERATE_FAILED")
		assert.Contains(t, err.Error(), "no entropy")
	})
}

func TestDeriveSessionID(t *testing.T) {
	codec := auth.NewSHA256TokenCodec()

	t.Run("is the hex SHA-256 of the token", func(t *testing.T) {
		// sha256("abc")
		assert.Equal(t,
			"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			codec.DeriveSessionID("abc"))
	})

	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, codec.DeriveSessionID("token"), codec.DeriveSessionID("token"))
	})

	t.Run("differs from the token", func(t *testing.T) {
		token, err := codec.GenerateToken()
		require.NoError(t, err)
		id := codec.DeriveSessionID(token)
		assert.Len(t, id, 64)
		assert.NotEqual(t, token, id)
	})

	t.Run("empty token still derives", func(t *testing.T) {
		assert.Equal(t,
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			codec.DeriveSessionID(""))
	})
}
