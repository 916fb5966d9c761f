// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tokengate/tokengate/internal/auth"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

// unmatchedRoute labels requests no route accepted.
const unmatchedRoute = "unmatched"

type contextKey struct{}

// RequestID returns the request id stored by the handler, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b) //nolint:wrapcheck // ResponseWriter passthrough
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// observe assigns a request id, records the request metric and writes the
// access log line.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, id)

		req := r.WithContext(context.WithValue(r.Context(), contextKey{}, id))
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(rec, req)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := req.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		h.metrics.RecordRequest(route, rec.status)
		h.requestLogger(req).InfoContext(req.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// recoverPanics converts handler panics into a 500 response.
func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			h.requestLogger(r).ErrorContext(r.Context(), "panic recovered",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			h.respondError(w, r, http.StatusInternalServerError, CodeInternal)
		}()
		next.ServeHTTP(w, r)
	})
}

type identityHandler func(w http.ResponseWriter, r *http.Request, id *auth.Identity)

// authenticated resolves the request credential before calling next. A
// renewed session gets its cookie re-issued with the new expiry.
func (h *Handler) authenticated(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred := h.credentialFrom(r)
		id, err := h.resolver.Resolve(r.Context(), cred)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				h.requestLogger(r).WarnContext(r.Context(), "unexpected resolver error", "error", err)
			}
			h.respondError(w, r, http.StatusUnauthorized, CodeUnauthorized)
			return
		}
		if id.Renewed && cred.Scheme == auth.SchemeCookie {
			h.setSessionCookie(w, cred.Token, id.Session.ExpiresAt)
		}
		next(w, r, id)
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	if id := RequestID(r.Context()); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}
