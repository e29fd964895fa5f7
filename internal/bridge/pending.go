// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"sync"
	"time"
)

type pendingCall struct {
	key       string
	createdAt time.Time
}

// pendingCalls tracks api_calls being answered, keyed by id.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[string]pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]pendingCall)}
}

// add reports false if id is already in flight.
func (p *pendingCalls) add(id, key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.calls[id]; dup {
		return false
	}
	p.calls[id] = pendingCall{key: key, createdAt: time.Now()}
	callsInFlight.Set(float64(len(p.calls)))
	return true
}

func (p *pendingCalls) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.calls, id)
	callsInFlight.Set(float64(len(p.calls)))
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
