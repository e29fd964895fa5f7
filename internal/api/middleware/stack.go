// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP middleware for the local control API.
package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"
)

// StackConfig configures the control API middleware stack.
type StackConfig struct {
	// Security headers
	EnableSecurityHeaders bool

	// Cross-site protection for state-changing requests
	EnableOriginCheck bool
	AllowedOrigins    []string

	// Optional shared secret expected in X-Local-Auth
	LocalToken func() string

	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// Rate limiting, requests per window per client IP. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// NewRouter constructs a chi router with the middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders)
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(AccessLog)
	}
	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(RateLimit(RateLimitConfig{RequestLimit: cfg.RateLimit, WindowSize: window}))
	}
	if cfg.EnableOriginCheck {
		r.Use(OriginCheck(cfg.AllowedOrigins))
	}
	if cfg.LocalToken != nil {
		r.Use(LocalAuth(cfg.LocalToken))
	}
}
