// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case d, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// hangUp simulates the backend closing the channel.
func (c *fakeConn) hangUp() { close(c.in) }

type dialFunc func(ctx context.Context) (Conn, error)

type fakeDialer struct {
	mu    sync.Mutex
	ports map[int]dialFunc
	order []int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	var port int
	if _, err := fmt.Sscanf(url, "ws://127.0.0.1:%d/ws/api", &port); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.order = append(d.order, port)
	fn := d.ports[port]
	d.mu.Unlock()
	if fn == nil {
		return nil, errors.New("connection refused")
	}
	return fn(ctx)
}

func (d *fakeDialer) dialed() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.order...)
}

func hang(ctx context.Context) (Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func openAfter(delay time.Duration, conn Conn) dialFunc {
	return func(ctx context.Context) (Conn, error) {
		select {
		case <-time.After(delay):
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type memPorts struct {
	mu   sync.Mutex
	port int
}

func (m *memPorts) Last(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port, nil
}

func (m *memPorts) Remember(_ context.Context, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port = port
	return nil
}
