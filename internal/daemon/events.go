// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"time"

	"github.com/ManuGH/wxbridge/internal/batch"
	"github.com/ManuGH/wxbridge/internal/feed"
	"github.com/ManuGH/wxbridge/internal/host"
	"github.com/rs/zerolog"
)

const profileTimeout = 10 * time.Second

// Event payload keys.
const (
	keyUsername = "mainFinderUsername"
	keyFeeds    = "feeds"
	keyFeed     = "feed"
	keyReplay   = "replay"
	keyTitle    = "title"
)

type usernameSetter interface {
	SetUsername(name string)
}

type profileReporter interface {
	Profile(ctx context.Context, item feed.CandidateItem) error
}

type progressSink interface {
	SetProgress(payload map[string]any)
	Running() bool
}

// eventRouter applies host events to the catalog, dispatcher and orchestrator.
type eventRouter struct {
	logger   zerolog.Logger
	identity usernameSetter
	catalog  *batch.Catalog
	profile  profileReporter
	progress progressSink
}

// consume delivers every event on sub to fn until ctx ends or sub closes.
func consume(ctx context.Context, sub host.Subscription, fn func(context.Context, host.Event)) error {
	defer func() { _ = sub.Close() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			fn(ctx, ev)
		}
	}
}

func (r *eventRouter) onInit(_ context.Context, ev host.Event) {
	name, _ := ev.Data[keyUsername].(string)
	if name == "" {
		return
	}
	r.identity.SetUsername(name)
	r.logger.Info().Str("event", "host.init").Str("username", name).Msg("host account announced")
}

// onFeedLoaded appends a feed page to the catalog, or reports a single
// opened feed to the backend's profile endpoint.
func (r *eventRouter) onFeedLoaded(ctx context.Context, ev host.Event) {
	if raws := mapsOf(ev.Data[keyFeeds]); len(raws) > 0 {
		replay, _ := ev.Data[keyReplay].(bool)
		items := normalizeAll(raws, replay)
		added := r.catalog.Append(items)
		r.logger.Debug().
			Str("event", "host.feeds_loaded").
			Int("received", len(raws)).
			Int("added", added).
			Int("total", r.catalog.Len()).
			Msg("feed page ingested")
		return
	}

	raw, ok := ev.Data[keyFeed].(map[string]any)
	if !ok || r.profile == nil {
		return
	}
	item, ok := feed.Normalize(raw)
	if !ok {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()
	if err := r.profile.Profile(pctx, *item); err != nil {
		r.logger.Warn().Err(err).Str("event", "host.profile_failed").Str("video_id", item.ID).Msg("profile report failed")
	}
}

// onNavigation replaces the catalog with the new view's items. A running
// download keeps the current list.
func (r *eventRouter) onNavigation(_ context.Context, ev host.Event) {
	if r.progress != nil && r.progress.Running() {
		r.logger.Info().Str("event", "host.navigation_ignored").Msg("download in progress, keeping item list")
		return
	}
	title, _ := ev.Data[keyTitle].(string)
	replay, _ := ev.Data[keyReplay].(bool)
	n := r.catalog.SetItems(feed.CleanTitle(title), normalizeAll(mapsOf(ev.Data[keyFeeds]), replay))
	r.logger.Debug().Str("event", "host.navigation").Str("title", title).Int("items", n).Msg("item list replaced")
}

func (r *eventRouter) onDownloadProgress(_ context.Context, ev host.Event) {
	if r.progress != nil {
		r.progress.SetProgress(ev.Data)
	}
}

func normalizeAll(raws []map[string]any, replay bool) []feed.CandidateItem {
	items := make([]feed.CandidateItem, 0, len(raws))
	for _, raw := range raws {
		var (
			it *feed.CandidateItem
			ok bool
		)
		if replay {
			it, ok = feed.NormalizeReplay(raw)
		} else {
			it, ok = feed.Normalize(raw)
		}
		if ok {
			items = append(items, *it)
		}
	}
	return items
}

func mapsOf(v any) []map[string]any {
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, e := range list {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
