// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/wxbridge/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginCheck(t *testing.T) {
	h := OriginCheck([]string{"http://allowed.test/"})(okHandler())

	tests := []struct {
		name    string
		method  string
		origin  string
		referer string
		want    int
	}{
		{name: "get passes", method: http.MethodGet, origin: "http://evil.test", want: http.StatusOK},
		{name: "cli without origin", method: http.MethodPost, want: http.StatusOK},
		{name: "same origin", method: http.MethodPost, origin: "http://127.0.0.1:2027", want: http.StatusOK},
		{name: "allowlisted", method: http.MethodDelete, origin: "http://allowed.test", want: http.StatusOK},
		{name: "foreign origin", method: http.MethodPost, origin: "http://evil.test", want: http.StatusForbidden},
		{name: "foreign referer", method: http.MethodPut, referer: "https://evil.test/page", want: http.StatusForbidden},
		{name: "same referer", method: http.MethodPut, referer: "http://127.0.0.1:2027/ui", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://127.0.0.1:2027/api/downloads", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLocalAuth(t *testing.T) {
	token := "s3cret"
	h := LocalAuth(func() string { return token })(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set(HeaderLocalAuth, "s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	token = ""
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDAndRecoverer(t *testing.T) {
	var seen string
	panicky := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = log.RequestIDFromContext(r.Context())
		panic("boom")
	})
	h := Recoverer(RequestID(panicky))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
}

func TestRequestID_Generated(t *testing.T) {
	w := httptest.NewRecorder()
	RequestID(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestNewRouter_SecurityHeadersAndMetrics(t *testing.T) {
	r := NewRouter(StackConfig{EnableSecurityHeaders: true, EnableMetrics: true, EnableLogging: true, RateLimit: 100})
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, "pong", w.Body.String())
}
