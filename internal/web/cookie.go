// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/tokengate/tokengate/internal/auth"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name string

	// Secure should only be false for plain-HTTP local development.
	Secure bool
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// credentialFrom extracts the request credential. The session cookie wins
// over an Authorization header. A request with neither yields an empty
// cookie credential, which the resolver rejects.
func (h *Handler) credentialFrom(r *http.Request) auth.Credential {
	if c, err := r.Cookie(h.cookie.Name); err == nil && c.Value != "" {
		return auth.Credential{Scheme: auth.SchemeCookie, Token: c.Value}
	}
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, _ := strings.Cut(header, " ")
		if strings.EqualFold(scheme, "bearer") {
			return auth.Credential{Scheme: auth.SchemeBearer, Token: strings.TrimSpace(token)}
		}
		return auth.Credential{Scheme: auth.Scheme(strings.ToLower(scheme)), Token: strings.TrimSpace(token)}
	}
	return auth.Credential{Scheme: auth.SchemeCookie}
}
