// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCandidates(t *testing.T) {
	assert.Equal(t, []int{2026, 9527, 8081, 3001}, Candidates(0, DefaultPorts))
	assert.Equal(t, []int{9527, 2026, 8081, 3001}, Candidates(9527, DefaultPorts))
	assert.Equal(t, []int{4000, 2026, 9527, 8081, 3001}, Candidates(4000, DefaultPorts))
}

func TestDiscover_TimeoutThenOpen(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn := newFakeConn()
	dialer := &fakeDialer{ports: map[int]dialFunc{
		2026: hang,
		9527: openAfter(20*time.Millisecond, conn),
	}}
	mem := &memPorts{}
	c := NewConnector(New(), dialer, mem, Options{
		Ports:          []int{2026, 9527},
		ConnectTimeout: 100 * time.Millisecond,
	})

	start := time.Now()
	port, got, err := c.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9527, port)
	assert.Same(t, conn, got)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "2026 must time out first")
	assert.Equal(t, 9527, mem.port)

	// The next sequence starts from the remembered port.
	_, _, err = c.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2026, 9527, 9527}, dialer.dialed())
}

func TestDiscover_Exhausted(t *testing.T) {
	dialer := &fakeDialer{ports: map[int]dialFunc{}}
	c := NewConnector(New(), dialer, nil, Options{Ports: []int{1, 2}, ConnectTimeout: 10 * time.Millisecond})

	_, _, err := c.Discover(context.Background())
	require.ErrorIs(t, err, ErrNoCandidate)
	assert.Equal(t, []int{1, 2}, dialer.dialed())
}

func TestRun_ReconnectsAfterDrop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	first, second := newFakeConn(), newFakeConn()
	conns := make(chan Conn, 2)
	conns <- first
	conns <- second
	dialer := &fakeDialer{ports: map[int]dialFunc{
		2026: func(context.Context) (Conn, error) { return <-conns, nil },
	}}
	b := New()
	c := NewConnector(b, dialer, &memPorts{}, Options{
		Ports:          []int{2026},
		ConnectTimeout: 50 * time.Millisecond,
		RetryBackoff:   30 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return b.State().Phase == Connected }, time.Second, 5*time.Millisecond)
	first.hangUp()
	require.Eventually(t, func() bool { return b.State().Phase == Reconnecting }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		s := b.State()
		return s.Phase == Connected && len(dialer.dialed()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, Disconnected, b.State().Phase)
	_, ok := b.ConnectedPort()
	assert.False(t, ok)
}

func TestRun_ExhaustionBacksOffAndRetries(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dialer := &fakeDialer{ports: map[int]dialFunc{}}
	c := NewConnector(New(), dialer, nil, Options{
		Ports:          []int{1},
		ConnectTimeout: 10 * time.Millisecond,
		RetryBackoff:   20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(dialer.dialed()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestConnector_URL(t *testing.T) {
	c := NewConnector(New(), &fakeDialer{}, nil, Options{})
	assert.Equal(t, "ws://127.0.0.1:2026/ws/api", c.URL(2026))

	c.SetOptions(Options{Host: "localhost", Path: "/x"})
	assert.Equal(t, "ws://localhost:1/x", c.URL(1))
}
