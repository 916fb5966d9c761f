//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tokengate/tokengate/internal/store"
)

func TestMigrator_FullCycle(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()

	pool, err := store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 1})
	require.NoError(t, err)
	defer pool.Close()

	status, err := migrator.Status()
	require.NoError(t, err)
	assert.Zero(t, status.Version)
	assert.Len(t, status.Pending, 2)

	missing, err := store.MissingIndexes(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, []string{store.SessionsPrimaryKey, store.UsersEmailIndex}, missing)

	require.NoError(t, migrator.Up())
	status, err = migrator.Status()
	require.NoError(t, err)
	assert.True(t, status.UpToDate())
	require.NoError(t, store.VerifySchema(ctx, pool))

	// Rolling back the sessions table leaves only the email index.
	require.NoError(t, migrator.Steps(-1))
	missing, err = store.MissingIndexes(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, []string{store.SessionsPrimaryKey}, missing)

	require.NoError(t, migrator.Steps(1))
	require.NoError(t, store.VerifySchema(ctx, pool))

	require.NoError(t, migrator.Down())
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	// Force only records the version; no tables are created.
	require.NoError(t, migrator.Force(2))
	status, err = migrator.Status()
	require.NoError(t, err)
	assert.True(t, status.UpToDate())
	assert.Error(t, store.VerifySchema(ctx, pool))

	require.NoError(t, migrator.Force(0))
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}
