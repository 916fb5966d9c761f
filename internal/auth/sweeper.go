// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/tokengate/tokengate/internal/observability"
	"github.com/tokengate/tokengate/pkg/errutil"
)

// Sweeper periodically deletes sessions that expired without ever being
// presented again. The Resolver still deletes expired sessions on sight;
// the sweeper only bounds table growth.
type Sweeper struct {
	store    ExpiredSessionSweeper
	interval time.Duration
	opts     options
}

// NewSweeper creates a Sweeper that runs every interval.
func NewSweeper(store ExpiredSessionSweeper, interval time.Duration, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if interval <= 0 {
		return nil, oops.Code("AUTH_INVALID_OPTION").With("interval", interval).Errorf("sweep interval must be positive")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Sweeper{store: store, interval: interval, opts: o}, nil
}

// SweepOnce deletes every session expired at the current time.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteExpiredSessions(ctx, s.opts.now())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	observability.RecordSessionsSwept(removed)
	return removed, nil
}

// Run sweeps until ctx is cancelled. Sweep failures are logged and the
// loop continues.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.opts.logger.InfoContext(ctx, "session sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.opts.logger.InfoContext(ctx, "session sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.SweepOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogError(ctx, s.opts.logger, slog.LevelWarn, "session sweep failed", err)
				continue
			}
			if removed > 0 {
				s.opts.logger.InfoContext(ctx, "expired sessions swept", "count", removed)
			}
		}
	}
}
