// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/ManuGH/wxbridge/internal/log"
	"github.com/google/uuid"
)

// Header names.
const (
	HeaderRequestID  = "X-Request-ID"
	HeaderLocalAuth  = "X-Local-Auth"
	maxRequestIDSize = 128
)

// RequestID propagates or assigns a request id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" || len(reqID) > maxRequestIDSize {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), reqID)))
	})
}

// AccessLog writes one line per request.
func AccessLog(next http.Handler) http.Handler {
	logger := log.WithComponent("api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r)

		l := log.WithContext(r.Context(), logger)
		ev := l.Debug()
		if sw.statusCode >= 500 {
			ev = l.Warn()
		}
		ev.Str("event", "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.statusCode).
			Int("bytes", sw.bytesWritten).
			Dur("took", time.Since(start)).
			Msg("request served")
	})
}

// LocalAuth requires X-Local-Auth to match the configured token. An empty
// token disables the check.
func LocalAuth(token func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := token()
			if want == "" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(HeaderLocalAuth)
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				reject(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid "+HeaderLocalAuth)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
