// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package errutil bridges oops errors and structured logging.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at level. For oops errors the code and context are
// emitted as separate attributes so they can be queried; other errors are
// logged as a plain string.
func LogError(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error) {
	if logger == nil || err == nil {
		return
	}
	logger.Log(ctx, level, msg, Attrs(err)...)
}

// Attrs returns the slog key/value pairs describing err.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err.Error()}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// Code returns the oops code of err, or "" when err carries none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}
