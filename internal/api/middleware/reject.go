// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/wxbridge/internal/log"
)

// reject writes the API's JSON error shape from inside the middleware chain.
func reject(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error     string `json:"error"`
		Detail    string `json:"detail,omitempty"`
		RequestID string `json:"requestId,omitempty"`
	}{code, detail, log.RequestIDFromContext(r.Context())})
}
