// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

// Package web exposes the auth service over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tokengate/tokengate/internal/auth"
	"github.com/tokengate/tokengate/internal/observability"
	"github.com/tokengate/tokengate/pkg/errutil"
)

// maxBodyBytes caps credential request bodies.
const maxBodyBytes = 1 << 20

// Authenticator is the subset of auth.Service the handlers use.
type Authenticator interface {
	Signup(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	InvalidateAllSessions(ctx context.Context, userID int64) (int64, error)
}

// IdentityResolver turns a request credential into an identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, cred auth.Credential) (*auth.Identity, error)
}

// Config holds the handler dependencies.
type Config struct {
	Auth     Authenticator
	Resolver IdentityResolver
	Cookie   CookieConfig
	Logger   *slog.Logger

	// Metrics is optional.
	Metrics *observability.Metrics
}

// Handler serves the /auth routes.
type Handler struct {
	auth     Authenticator
	resolver IdentityResolver
	cookie   CookieConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewHandler validates cfg and creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Auth == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("authenticator is required")
	}
	if cfg.Resolver == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("identity resolver is required")
	}
	if cfg.Logger == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if strings.TrimSpace(cfg.Cookie.Name) == "" {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("cookie name is required")
	}
	return &Handler{
		auth:     cfg.Auth,
		resolver: cfg.Resolver,
		cookie:   cfg.Cookie,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Routes returns the instrumented HTTP handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/username/signup", h.signup)
	mux.HandleFunc("POST /auth/username/login", h.login)
	mux.HandleFunc("GET /auth/me", h.authenticated(h.me))
	mux.HandleFunc("POST /auth/logout", h.authenticated(h.logout))

	return otelhttp.NewHandler(h.observe(h.recoverPanics(mux)), "tokengate.http")
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	if _, err := h.auth.Signup(r.Context(), in.Email, in.Password); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			h.respondError(w, r, http.StatusNotFound, CodeNotFound)
			return
		}
		h.internalError(w, r, "signup failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	result, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.respondError(w, r, http.StatusNotFound, CodeNotFound)
			return
		}
		h.internalError(w, r, "login failed", err)
		return
	}

	h.setSessionCookie(w, result.Token, result.Session.ExpiresAt)
	h.respond(w, r, http.StatusOK, loginResponse{ExpiresAt: result.Session.ExpiresAt})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	h.respond(w, r, http.StatusOK, userResponse{
		ID:        id.User.ID,
		Email:     id.User.Email,
		CreatedAt: id.User.CreatedAt,
		UpdatedAt: id.User.UpdatedAt,
	})
}

// logout removes every session of the caller, not only the presented one.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if _, err := h.auth.InvalidateAllSessions(r.Context(), id.User.ID); err != nil {
		h.internalError(w, r, "logout failed", err)
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// decodeCredentials reads the request body. It writes a 400 and returns
// false when the body is unusable.
func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var in credentialsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		h.requestLogger(r).DebugContext(r.Context(), "malformed request body", "error", err)
		h.respondError(w, r, http.StatusBadRequest, CodeBadRequest)
		return in, false
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		h.respondError(w, r, http.StatusBadRequest, CodeBadRequest)
		return in, false
	}
	return in, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogError(r.Context(), h.requestLogger(r), slog.LevelError, msg, err)
	h.respondError(w, r, http.StatusInternalServerError, CodeInternal)
}
