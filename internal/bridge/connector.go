// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/rs/zerolog"
)

// ErrNoCandidate means no candidate port accepted a connection in one discovery sequence.
var ErrNoCandidate = errors.New("no candidate port reachable")

// PortMemory persists the last port a session opened on.
type PortMemory interface {
	Last(ctx context.Context) (int, error)
	Remember(ctx context.Context, port int) error
}

// Options configures a Connector.
type Options struct {
	Host           string
	Path           string
	Ports          []int
	ConnectTimeout time.Duration
	RetryBackoff   time.Duration
}

const (
	defaultHost           = "127.0.0.1"
	defaultPath           = "/ws/api"
	defaultConnectTimeout = 5 * time.Second
	defaultRetryBackoff   = 3 * time.Second
)

// DefaultPorts is the fixed candidate list tried after the remembered port.
var DefaultPorts = []int{2026, 9527, 8081, 3001}

func normalizeOptions(o Options) Options {
	if o.Host == "" {
		o.Host = defaultHost
	}
	if o.Path == "" {
		o.Path = defaultPath
	}
	if len(o.Ports) == 0 {
		o.Ports = DefaultPorts
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	return o
}

// Candidates puts remembered first, followed by defaults, without duplicates.
// A zero remembered port is ignored.
func Candidates(remembered int, defaults []int) []int {
	out := make([]int, 0, len(defaults)+1)
	seen := make(map[int]bool, len(defaults)+1)
	if remembered > 0 {
		out = append(out, remembered)
		seen[remembered] = true
	}
	for _, p := range defaults {
		if !seen[p] {
			out = append(out, p)
			seen[p] = true
		}
	}
	return out
}

// Connector runs discovery sequences and hands each opened channel to the Bridge.
type Connector struct {
	bridge *Bridge
	dialer Dialer
	memory PortMemory
	logger zerolog.Logger

	attempts atomic.Uint64
	opts     atomic.Pointer[Options]
}

// NewConnector wires a connector. memory may be nil.
func NewConnector(b *Bridge, d Dialer, memory PortMemory, opts Options) *Connector {
	c := &Connector{
		bridge: b,
		dialer: d,
		memory: memory,
		logger: xglog.WithComponent("connector"),
	}
	c.SetOptions(opts)
	return c
}

// SetOptions replaces the options; the next discovery sequence uses them.
func (c *Connector) SetOptions(opts Options) {
	o := normalizeOptions(opts)
	c.opts.Store(&o)
}

func (c *Connector) options() Options {
	return *c.opts.Load()
}

// URL returns the channel URL for port.
func (c *Connector) URL(port int) string {
	o := c.options()
	return fmt.Sprintf("ws://%s:%d%s", o.Host, port, o.Path)
}

// Run loops forever: discover, serve the session, back off, repeat.
// It returns nil once ctx ends.
func (c *Connector) Run(ctx context.Context) error {
	for {
		port, conn, err := c.Discover(ctx)
		if ctx.Err() != nil {
			c.bridge.setState(newState(Disconnected, 0, 0))
			return nil
		}
		if err != nil {
			c.bridge.setState(newState(Disconnected, 0, 0))
			c.logger.Warn().
				Err(err).
				Str("event", "connector.exhausted").
				Dur("retry_in", c.options().RetryBackoff).
				Msg("all candidate ports failed")
		} else {
			_ = c.bridge.serve(ctx, port, conn)
			if ctx.Err() != nil {
				c.bridge.setState(newState(Disconnected, 0, 0))
				return nil
			}
			c.bridge.setState(newState(Reconnecting, 0, 0))
			c.logger.Info().
				Str("event", "connector.reconnect_scheduled").
				Dur("retry_in", c.options().RetryBackoff).
				Msg("connection dropped, restarting discovery")
		}
		if !sleepCtx(ctx, c.options().RetryBackoff) {
			c.bridge.setState(newState(Disconnected, 0, 0))
			return nil
		}
	}
}

// Discover runs one discovery sequence and returns the first channel that opens.
// The winning port is persisted.
func (c *Connector) Discover(ctx context.Context) (int, Conn, error) {
	opts := c.options()
	remembered := 0
	if c.memory != nil {
		p, err := c.memory.Last(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("event", "connector.memory_read_failed").Msg("could not read remembered port")
		}
		remembered = p
	}

	for _, port := range Candidates(remembered, opts.Ports) {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		attempt := c.attempts.Add(1)
		c.bridge.setState(newState(Connecting, port, attempt))
		url := c.URL(port)

		dialCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
		conn, err := c.dialer.Dial(dialCtx, url)
		timedOut := errors.Is(dialCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err != nil {
			result := "error"
			if timedOut {
				result = "timeout"
			}
			connectAttempts.WithLabelValues(strconv.Itoa(port), result).Inc()
			c.logger.Debug().
				Err(err).
				Str("event", "connector.attempt_failed").
				Str(xglog.FieldURL, url).
				Uint64(xglog.FieldAttempt, attempt).
				Str("result", result).
				Msg("candidate port failed")
			continue
		}

		connectAttempts.WithLabelValues(strconv.Itoa(port), "open").Inc()
		if c.memory != nil {
			if err := c.memory.Remember(ctx, port); err != nil {
				c.logger.Warn().Err(err).Int(xglog.FieldPort, port).Str("event", "connector.memory_write_failed").Msg("could not persist port")
			}
		}
		return port, conn, nil
	}
	return 0, nil, ErrNoCandidate
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
