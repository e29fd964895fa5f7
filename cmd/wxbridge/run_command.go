// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/wxbridge/internal/config"
	"github.com/ManuGH/wxbridge/internal/daemon"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/version"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the backend and serve the control API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := xglog.WithComponent("daemon")
			source := "env+defaults"
			if p := ctx.loader.Path(); p != "" {
				source = p
			}
			logger.Info().
				Str("event", "config.loaded").
				Str("source", source).
				Str("version", version.Version).
				Str("commit", version.Commit).
				Msg("configuration loaded")

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := daemon.Bootstrap(runCtx, config.NewConfigHolder(cfg, ctx.loader))
			if err != nil {
				return err
			}
			runErr := app.Run(runCtx)
			if err := app.Close(); err != nil {
				logger.Warn().Err(err).Str("event", "daemon.close_failed").Msg("shutdown incomplete")
			}
			if runErr != nil && runCtx.Err() == nil {
				return runErr
			}
			return nil
		},
	}
}
