// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/wxbridge/internal/batch"
	"github.com/ManuGH/wxbridge/internal/feed"
	"github.com/ManuGH/wxbridge/internal/host"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordedIdentity struct{ name string }

func (r *recordedIdentity) SetUsername(name string) { r.name = name }

type recordedProfiles struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordedProfiles) Profile(_ context.Context, item feed.CandidateItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, item.ID)
	return nil
}

type recordedProgress struct {
	running bool
	last    map[string]any
}

func (r *recordedProgress) SetProgress(p map[string]any) { r.last = p }
func (r *recordedProgress) Running() bool                { return r.running }

func rawFeed(t *testing.T, id string) map[string]any {
	t.Helper()
	var m map[string]any
	s := `{"id":"` + id + `","objectDesc":{"mediaType":4,"description":"clip ` + id + `","media":[{"url":"https://cdn/` + id + `"}]}}`
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func newRouter() (*eventRouter, *recordedIdentity, *recordedProfiles, *recordedProgress) {
	id := &recordedIdentity{}
	prof := &recordedProfiles{}
	prog := &recordedProgress{}
	return &eventRouter{
		logger:   xglog.Discard(),
		identity: id,
		catalog:  batch.NewCatalog(0, 0),
		profile:  prof,
		progress: prog,
	}, id, prof, prog
}

func TestEventRouter_Init(t *testing.T) {
	r, id, _, _ := newRouter()
	r.onInit(context.Background(), host.Event{Topic: host.TopicInit, Data: map[string]any{}})
	assert.Empty(t, id.name)

	r.onInit(context.Background(), host.Event{Topic: host.TopicInit, Data: map[string]any{keyUsername: "v2_me"}})
	assert.Equal(t, "v2_me", id.name)
}

func TestEventRouter_FeedsAppendAndDedupe(t *testing.T) {
	r, _, prof, _ := newRouter()
	ctx := context.Background()

	r.onFeedLoaded(ctx, host.Event{Data: map[string]any{
		keyFeeds: []any{rawFeed(t, "1"), rawFeed(t, "2"), "junk"},
	}})
	r.onFeedLoaded(ctx, host.Event{Data: map[string]any{
		keyFeeds: []any{rawFeed(t, "2"), rawFeed(t, "3")},
	}})

	require.Equal(t, 3, r.catalog.Len())
	got, ok := r.catalog.Get("1")
	require.True(t, ok)
	assert.Equal(t, "clip 1", got.Title)
	assert.Empty(t, prof.ids)
}

func TestEventRouter_SingleFeedReportsProfile(t *testing.T) {
	r, _, prof, _ := newRouter()
	r.onFeedLoaded(context.Background(), host.Event{Data: map[string]any{keyFeed: rawFeed(t, "9")}})

	assert.Equal(t, []string{"9"}, prof.ids)
	assert.Zero(t, r.catalog.Len())
}

func TestEventRouter_Navigation(t *testing.T) {
	r, _, _, prog := newRouter()
	ctx := context.Background()
	r.onFeedLoaded(ctx, host.Event{Data: map[string]any{keyFeeds: []any{rawFeed(t, "1")}}})

	prog.running = true
	r.onNavigation(ctx, host.Event{Data: map[string]any{keyTitle: "Food", keyFeeds: []any{rawFeed(t, "5")}}})
	_, kept := r.catalog.Get("1")
	assert.True(t, kept)

	prog.running = false
	r.onNavigation(ctx, host.Event{Data: map[string]any{keyTitle: "<b>Food</b>", keyFeeds: []any{rawFeed(t, "5"), rawFeed(t, "6")}}})
	assert.Equal(t, 2, r.catalog.Len())
	assert.Equal(t, "Food", r.catalog.Title())
	_, kept = r.catalog.Get("1")
	assert.False(t, kept)
}

func TestEventRouter_DownloadProgress(t *testing.T) {
	r, _, _, prog := newRouter()
	payload := map[string]any{"videoId": "1", "percent": 40}
	r.onDownloadProgress(context.Background(), host.Event{Data: payload})
	assert.Equal(t, payload, prog.last)
}

func TestConsume_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bus := host.NewBus()
	sub := bus.Subscribe(host.TopicInit)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- consume(ctx, sub, func(_ context.Context, ev host.Event) {
			got <- ev.Data[keyUsername].(string)
		})
	}()

	require.NoError(t, bus.Publish(context.Background(), host.Event{Topic: host.TopicInit, Data: map[string]any{keyUsername: "a"}}))
	select {
	case name := <-got:
		assert.Equal(t, "a", name)
	case <-time.After(time.Second):
		t.Fatal("event not consumed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consume did not stop")
	}
}
