// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package kvstore

import (
	"context"
	"strconv"
)

// PortKey is the fixed key under which the last successful bridge port is stored.
const PortKey = "__wx_api_ws_port"

// PortMemory remembers the last port a bridge session opened on.
type PortMemory struct {
	store Store
}

// NewPortMemory wraps store.
func NewPortMemory(store Store) *PortMemory {
	return &PortMemory{store: store}
}

// Last returns the remembered port, or 0 when none is stored or the value is unusable.
func (p *PortMemory) Last(ctx context.Context) (int, error) {
	v, ok, err := p.store.Get(ctx, PortKey)
	if err != nil || !ok {
		return 0, err
	}
	port, convErr := strconv.Atoi(v)
	if convErr != nil || port < 1 || port > 65535 {
		return 0, nil
	}
	return port, nil
}

// Remember stores port as the last successful one.
func (p *PortMemory) Remember(ctx context.Context, port int) error {
	return p.store.Set(ctx, PortKey, strconv.Itoa(port))
}
