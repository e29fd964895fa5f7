// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package host is the boundary to the page the bridge runs next to: the
// capability functions it exposes and the events it raises.
package host

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotReady is returned when capabilities did not become available in time.
var ErrNotReady = errors.New("host capabilities not initialized")

// Capabilities are the remote procedures the host page exposes.
// Payloads and results are the host's JSON objects.
type Capabilities interface {
	FinderSearch(ctx context.Context, payload map[string]any) (map[string]any, error)
	FinderUserPage(ctx context.Context, payload map[string]any) (map[string]any, error)
	FinderGetCommentDetail(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// CommentCollector is an optional capability that starts the host's comment collection routine.
type CommentCollector interface {
	StartCommentCollection(ctx context.Context) error
}

// Registry tracks the capabilities currently published by the host.
type Registry struct {
	mu   sync.RWMutex
	caps Capabilities
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set publishes c. A nil value withdraws the current capabilities.
func (r *Registry) Set(c Capabilities) {
	r.mu.Lock()
	r.caps = c
	r.mu.Unlock()
}

// Current returns the published capabilities, if any.
func (r *Registry) Current() (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps, r.caps != nil
}

// Collector returns the comment collector when the current capabilities provide one.
func (r *Registry) Collector() (CommentCollector, bool) {
	c, ok := r.Current()
	if !ok {
		return nil, false
	}
	cc, ok := c.(CommentCollector)
	return cc, ok
}

// Wait polls every poll until capabilities appear, budget elapses, or ctx ends.
func (r *Registry) Wait(ctx context.Context, budget, poll time.Duration) (Capabilities, error) {
	if c, ok := r.Current(); ok {
		return c, nil
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			if c, ok := r.Current(); ok {
				return c, nil
			}
			return nil, ErrNotReady
		case <-ticker.C:
			if c, ok := r.Current(); ok {
				return c, nil
			}
		}
	}
}
