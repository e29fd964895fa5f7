// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the local control surface: item list, selection,
// download runs and bridge state.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/wxbridge/internal/api/middleware"
	"github.com/ManuGH/wxbridge/internal/batch"
	"github.com/ManuGH/wxbridge/internal/bridge"
	"github.com/ManuGH/wxbridge/internal/host"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxBodyBytes      = 32 << 20
)

// BridgeState exposes the connection snapshot.
type BridgeState interface {
	State() bridge.State
	InFlight() int
}

// Identity exposes the signed-in host account.
type Identity interface {
	Username() string
}

// EventSink accepts host events relayed over HTTP.
type EventSink interface {
	Publish(ctx context.Context, ev host.Event) error
}

// Config configures the server.
type Config struct {
	ListenAddr     string
	RateLimit      int
	AllowedOrigins []string
	TracingService string
	Version        string
}

// Deps are the components the handlers operate on.
type Deps struct {
	Catalog      *batch.Catalog
	Orchestrator *batch.Orchestrator
	Bridge       BridgeState
	Identity     Identity
	Events       EventSink
	LocalToken   func() string
	// RunContext bounds download runs started over HTTP, which outlive the request.
	RunContext context.Context
}

// Server is the control API.
type Server struct {
	cfg     Config
	deps    Deps
	handler http.Handler
	logger  zerolog.Logger
	now     func() time.Time
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	if deps.RunContext == nil {
		deps.RunContext = context.Background()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: xglog.WithComponent("api"),
		now:    time.Now,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableOriginCheck:     true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		LocalToken:            s.deps.LocalToken,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		RateLimit:             s.cfg.RateLimit,
		RateWindow:            time.Minute,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Get("/items", s.handleListItems)
		r.Post("/items", s.handleAppendItems)
		r.Put("/items", s.handleReplaceItems)
		r.Delete("/items", s.handleClearItems)
		r.Get("/items/export", s.handleExportItems)

		r.Post("/selection", s.handleSelect)
		r.Post("/selection/page", s.handleSelectPage)

		r.Post("/events", s.handlePublishEvent)

		r.Get("/downloads", s.handleDownloadStatus)
		r.Post("/downloads", s.handleStartDownload)
		r.Delete("/downloads", s.handleCancelDownload)
	})
	return r
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("event", "api.listen").Str("addr", ln.Addr().String()).Msg("control API listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Str("event", "api.shutdown_failed").Msg("control API shutdown incomplete")
		_ = srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Str("event", "api.stopped").Msg("control API stopped")
	return nil
}
