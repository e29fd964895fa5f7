// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/wxbridge/internal/api"
	"github.com/ManuGH/wxbridge/internal/backend"
	"github.com/ManuGH/wxbridge/internal/batch"
	"github.com/ManuGH/wxbridge/internal/bridge"
	"github.com/ManuGH/wxbridge/internal/config"
	"github.com/ManuGH/wxbridge/internal/dispatch"
	"github.com/ManuGH/wxbridge/internal/host"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// App owns the long-lived runtime: the bridge connector, the control API,
// host event consumers and config reload wiring.
type App struct {
	logger       zerolog.Logger
	cfgHolder    *config.ConfigHolder
	bridge       *bridge.Bridge
	connector    *bridge.Connector
	bus          *host.Bus
	registry     *host.Registry
	dispatcher   *dispatch.Dispatcher
	catalog      *batch.Catalog
	orchestrator *batch.Orchestrator
	backend      *backend.Client
	apiServer    *api.Server
	listener     net.Listener
	reloadSignal os.Signal

	hooks     shutdownHooks
	closeOnce sync.Once
	closeErr  error
}

// RegisterShutdownHook adds cleanup run by Close, last registered first.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.hooks.register(name, hook)
}

// Catalog returns the item list shared by the API and the event consumers.
func (a *App) Catalog() *batch.Catalog { return a.catalog }

// Orchestrator returns the download orchestrator.
func (a *App) Orchestrator() *batch.Orchestrator { return a.orchestrator }

// Bus returns the host event bus.
func (a *App) Bus() *host.Bus { return a.bus }

// Run starts every owned subsystem and blocks until ctx is cancelled or a
// subsystem fails. In-flight download runs and calls are drained before it returns.
func (a *App) Run(ctx context.Context) error {
	if a.connector == nil {
		return ErrMissingConnector
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if err := a.cfgHolder.StartWatcher(ctx); err != nil {
		a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
	}

	applyCh := make(chan config.AppConfig, 1)
	a.cfgHolder.RegisterListener(applyCh)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-applyCh:
				a.apply(cfg)
			}
		}
	})

	if a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	router := &eventRouter{
		logger:   a.logger,
		identity: a.dispatcher,
		catalog:  a.catalog,
		profile:  a.backend,
		progress: a.orchestrator,
	}
	subscriptions := []struct {
		topic string
		fn    func(context.Context, host.Event)
	}{
		{host.TopicInit, router.onInit},
		{host.TopicFeedLoaded, router.onFeedLoaded},
		{host.TopicNavigation, router.onNavigation},
		{host.TopicDownloadProgress, router.onDownloadProgress},
	}
	for _, s := range subscriptions {
		sub := a.bus.Subscribe(s.topic)
		fn := s.fn
		g.Go(func() error { return consume(ctx, sub, fn) })
	}

	g.Go(func() error { return a.connector.Run(ctx) })

	if a.apiServer != nil {
		g.Go(func() error {
			if a.listener != nil {
				return a.apiServer.Serve(ctx, a.listener)
			}
			return a.apiServer.ListenAndServe(ctx)
		})
	}

	a.logger.Info().Str("event", "daemon.started").Msg("bridge client running")
	err := g.Wait()

	if a.orchestrator.Cancel() {
		a.logger.Info().Str("event", "daemon.download_cancelled").Msg("cancelling running download")
	}
	a.orchestrator.Wait()
	a.bridge.Wait()
	a.logger.Info().Str("event", "daemon.stopped").Msg("bridge client stopped")
	return err
}

// apply pushes the hot-reloadable settings into running components.
func (a *App) apply(cfg config.AppConfig) {
	a.backend.SetLocalToken(cfg.Backend.LocalToken)
	a.orchestrator.SetForceRedownload(cfg.Batch.ForceRedownload)
	a.connector.SetOptions(connectorOptions(cfg.Bridge))
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	a.logger.Info().Str("event", "daemon.config_applied").Msg("applied reloaded configuration")
}

// Close releases stores, telemetry and the bus. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.closeErr = a.hooks.run(ctx, a.logger)
	})
	return a.closeErr
}

func connectorOptions(c config.BridgeConfig) bridge.Options {
	return bridge.Options{
		Host:           c.Host,
		Path:           c.Path,
		Ports:          c.Ports,
		ConnectTimeout: c.ConnectTimeout,
		RetryBackoff:   c.RetryBackoff,
	}
}

var defaultReloadSignal os.Signal = syscall.SIGHUP
