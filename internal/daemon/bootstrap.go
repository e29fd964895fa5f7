// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon assembles the bridge client from configuration and owns its lifecycle.
package daemon

import (
	"context"
	"fmt"

	"github.com/ManuGH/wxbridge/internal/api"
	"github.com/ManuGH/wxbridge/internal/backend"
	"github.com/ManuGH/wxbridge/internal/batch"
	"github.com/ManuGH/wxbridge/internal/bridge"
	"github.com/ManuGH/wxbridge/internal/config"
	"github.com/ManuGH/wxbridge/internal/dispatch"
	"github.com/ManuGH/wxbridge/internal/host"
	"github.com/ManuGH/wxbridge/internal/kvstore"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/metrics"
	"github.com/ManuGH/wxbridge/internal/platform/httpx"
	"github.com/ManuGH/wxbridge/internal/telemetry"
)

const serviceName = "wxbridge"

// Bootstrap wires every component from the holder's current configuration.
// ctx bounds setup and also every download run started over the control API.
// The caller must Close the returned App.
func Bootstrap(ctx context.Context, holder *config.ConfigHolder) (*App, error) {
	if holder == nil {
		return nil, ErrMissingConfig
	}
	cfg := holder.Get()

	a := &App{
		logger:       xglog.WithComponent("daemon"),
		cfgHolder:    holder,
		reloadSignal: defaultReloadSignal,
	}
	metrics.SetBuildInfo(cfg.Version)

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.RegisterShutdownHook("telemetry", tp.Shutdown)

	store, err := kvstore.Open(ctx, cfg.Store)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	a.RegisterShutdownHook("store", func(context.Context) error { return store.Close() })

	a.bus = host.NewBus()
	a.registry = host.NewRegistry()
	if cfg.Host.Endpoint != "" {
		a.registry.Set(host.NewHTTPCapabilities(cfg.Host.Endpoint, cfg.Host.Timeout))
		a.logger.Info().Str("event", "host.relay").Str("endpoint", cfg.Host.Endpoint).Msg("using HTTP capability relay")
	}

	a.bridge = bridge.New()
	bridge.RegisterBuiltins(a.bridge, a.registry, a.bus)
	a.dispatcher = dispatch.New(a.registry, dispatch.Options{
		WaitBudget:   cfg.Dispatch.WaitBudget,
		PollInterval: cfg.Dispatch.PollInterval,
	})
	a.bridge.SetCallHandler(a.dispatcher)
	a.connector = bridge.NewConnector(a.bridge,
		bridge.WebSocketDialer{HTTPClient: httpx.NewClient(0), ReadLimit: cfg.Bridge.ReadLimit},
		kvstore.NewPortMemory(store),
		connectorOptions(cfg.Bridge))

	a.backend = backend.NewClient(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Port: func() int {
			p, _ := a.bridge.ConnectedPort()
			return p
		},
		LocalToken: cfg.Backend.LocalToken,
		Timeout:    cfg.Backend.Timeout,
	})

	a.catalog = batch.NewCatalog(cfg.Batch.MaxItems, cfg.Batch.PageSize)
	a.orchestrator = batch.NewOrchestrator(a.backend, cfg.Batch.ItemDelay)
	a.orchestrator.SetForceRedownload(cfg.Batch.ForceRedownload)
	a.catalog.GuardClear(a.orchestrator.Running)

	if cfg.API.Enabled {
		a.apiServer = api.New(api.Config{
			ListenAddr:     cfg.API.ListenAddr,
			RateLimit:      cfg.API.RateLimit,
			TracingService: serviceName,
			Version:        cfg.Version,
		}, api.Deps{
			Catalog:      a.catalog,
			Orchestrator: a.orchestrator,
			Bridge:       a.bridge,
			Identity:     a.dispatcher,
			Events:       a.bus,
			LocalToken:   func() string { return holder.Get().Backend.LocalToken },
			RunContext:   ctx,
		})
	}

	a.logger.Info().
		Str("event", "daemon.bootstrapped").
		Str("store", cfg.Store.Backend).
		Bool("api", cfg.API.Enabled).
		Bool("telemetry", cfg.Telemetry.Enabled).
		Msg("components wired")
	return a, nil
}
