// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/metrics"
)

// Host event topics.
const (
	TopicInit             = "init"
	TopicFeedLoaded       = "feed_loaded"
	TopicNavigation       = "navigation"
	TopicDownloadProgress = "download_progress"
)

// Event is one host notification. Data is the host's JSON object.
type Event struct {
	Topic string
	Data  map[string]any
}

// Subscription receives events for one topic until closed.
type Subscription interface {
	C() <-chan Event
	Close() error
}

const (
	subBuffer    = 64
	dropLogEvery = 100
)

var dropCount atomic.Uint64

// Bus is an in-process pub/sub for host events. Delivery is in order per
// subscriber; a publisher blocks on a full subscriber until its context ends.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]chan Event)}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish delivers ev to every subscriber of ev.Topic.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	// Holding the read lock keeps Close from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	metrics.BusPublishedTotal.WithLabelValues(ev.Topic).Inc()
	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(ev.Topic, reason)
			if count := dropCount.Add(1); count%dropLogEvery == 1 {
				log.L().Warn().
					Str("event", "bus.drop").
					Str("topic", ev.Topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("host event dropped")
			}
			return fmt.Errorf("publish topic %q: %w", ev.Topic, ctx.Err())
		}
	}
	return nil
}

// Subscribe registers a buffered subscription for topic.
func (b *Bus) Subscribe(topic string) Subscription {
	ch := make(chan Event, subBuffer)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return &busSub{b: b, topic: topic, ch: ch}
}

type busSub struct {
	b     *Bus
	topic string
	ch    chan Event
	once  sync.Once
}

func (s *busSub) C() <-chan Event { return s.ch }

func (s *busSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s.ch {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
	})
	return nil
}
