// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/wxbridge/internal/host"
	xglog "github.com/ManuGH/wxbridge/internal/log"
)

// Built-in push command actions.
const (
	ActionStartCommentCollection = "start_comment_collection"
	ActionDownloadProgress       = "download_progress"
)

// ErrCollectorNotReady is returned when the host has no comment collector yet.
var ErrCollectorNotReady = errors.New("comment collector not ready")

const (
	progressPublishTimeout = time.Second
	collectionTimeout      = 10 * time.Minute
)

// RegisterBuiltins installs the standard command handlers.
// Comment collection runs detached so the read loop keeps going.
func RegisterBuiltins(b *Bridge, registry *host.Registry, bus *host.Bus) {
	b.HandleCommand(ActionStartCommentCollection, func(ctx context.Context, _ map[string]any) error {
		collector, ok := registry.Collector()
		if !ok {
			return ErrCollectorNotReady
		}
		go func() {
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), collectionTimeout)
			defer cancel()
			if err := collector.StartCommentCollection(cctx); err != nil {
				logger := xglog.WithComponent("bridge")
				logger.Warn().
					Err(err).
					Str("event", "bridge.comment_collection_failed").
					Msg("comment collection failed")
			}
		}()
		return nil
	})

	b.HandleCommand(ActionDownloadProgress, func(ctx context.Context, payload map[string]any) error {
		pctx, cancel := context.WithTimeout(ctx, progressPublishTimeout)
		defer cancel()
		return bus.Publish(pctx, host.Event{Topic: host.TopicDownloadProgress, Data: payload})
	})
}
