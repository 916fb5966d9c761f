// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/tokengate/tokengate/pkg/errutil"
)

// Client-visible error codes.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL"
)

type errorResponse struct {
	Code string `json:"code"`
}

// writeJSON sends v with status. The status line is already out when the
// body fails, so the error is only useful for logging.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("WEB_RESPONSE_WRITE_FAILED").With("status", status).Wrap(err)
	}
	return nil
}

// respond writes a JSON body and logs a failed write at debug level.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		errutil.LogError(r.Context(), h.requestLogger(r), slog.LevelDebug, "failed to write response", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, code string) {
	h.respond(w, r, status, errorResponse{Code: code})
}
