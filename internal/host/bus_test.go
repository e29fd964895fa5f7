// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package host

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/wxbridge/internal/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrder(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(TopicFeedLoaded)
	defer func() { _ = sub.Close() }()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicFeedLoaded, Data: map[string]any{"n": i}}))
	}
	for i := 0; i < 3; i++ {
		ev := <-sub.C()
		assert.Equal(t, i, ev.Data["n"])
	}
}

func TestBus_OtherTopicsIgnored(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(TopicInit)
	defer func() { _ = sub.Close() }()

	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicNavigation}))
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestBus_PublishTimeoutCountsDrop(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe("full")
	defer func() { _ = sub.Close() }()

	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), Event{Topic: "full"}))
	}

	counter := metrics.BusDroppedTotal.WithLabelValues("full", "timeout")
	m := &dto.Metric{}
	require.NoError(t, counter.Write(m))
	before := m.GetCounter().GetValue()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Publish(ctx, Event{Topic: "full"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, counter.Write(m))
	assert.Greater(t, m.GetCounter().GetValue(), before)
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(TopicInit)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.C()
	assert.False(t, ok)
	require.NoError(t, b.Publish(context.Background(), Event{Topic: TopicInit}))
}

func TestBus_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	err := NewBus().Publish(nil, Event{Topic: TopicInit})
	require.Error(t, err)
}
