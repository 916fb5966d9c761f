// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package auth

import (
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/tokengate/tokengate/internal/auth")

// Option configures a Service, Resolver or Sweeper.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	loggerSet     bool
	now           func() time.Time
	policy        SessionPolicy
	insertRetries uint64
}

func defaultOptions() options {
	return options{
		logger:        slog.Default(),
		now:           time.Now,
		policy:        DefaultSessionPolicy(),
		insertRetries: 3,
	}
}

// WithLogger sets the logger. A nil logger is rejected by the constructor.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
		o.loggerSet = true
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSessionPolicy overrides the session lifetime and renewal window.
func WithSessionPolicy(policy SessionPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithSessionInsertRetries bounds how often Login retries a session insert
// that collided on its primary key.
func WithSessionInsertRetries(n uint64) Option {
	return func(o *options) {
		o.insertRetries = n
	}
}

func buildOptions(opts []Option) (options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.loggerSet && o.logger == nil {
		return o, oops.Code("AUTH_INVALID_OPTION").Errorf("logger cannot be nil")
	}
	if o.now == nil {
		return o, oops.Code("AUTH_INVALID_OPTION").Errorf("clock cannot be nil")
	}
	if err := o.policy.Validate(); err != nil {
		return o, err
	}
	return o, nil
}
