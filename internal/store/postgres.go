// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// connectBackoffBase is the first delay between connection attempts. Later
// delays grow exponentially up to connectBackoffCap.
const (
	connectBackoffBase = 250 * time.Millisecond
	connectBackoffCap  = 5 * time.Second
)

// pinger is the part of *pgxpool.Pool used to ping the database.
type pinger interface {
	Ping(ctx context.Context) error
}

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// Attempts is the total number of tries. Values below 1 mean one try.
	Attempts uint64
	Logger   *slog.Logger
}

// Connect opens a pgx pool for databaseURL and waits until it answers a
// ping. Failed pings are retried with exponential backoff so the service
// can start before the database does.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForPing(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, db pinger, opts ConnectOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := uint64(0)
	if opts.Attempts > 1 {
		retries = opts.Attempts - 1
	}

	attempt := 0
	backoff := retry.WithMaxRetries(retries,
		retry.WithCappedDuration(connectBackoffCap, retry.NewExponential(connectBackoffBase)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

// Ready reports whether db answers a ping within timeout.
func Ready(ctx context.Context, db pinger, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.Ping(ctx) == nil
}
