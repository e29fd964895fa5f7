// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bridge keeps the channel to the local backend open and answers the
// calls and push commands the backend sends over it.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second
	commandQueue = 64
)

// CallHandler answers an api_call. The returned object becomes the response data.
type CallHandler interface {
	HandleCall(ctx context.Context, call Call) map[string]any
}

// CallHandlerFunc adapts a function to CallHandler.
type CallHandlerFunc func(ctx context.Context, call Call) map[string]any

func (f CallHandlerFunc) HandleCall(ctx context.Context, call Call) map[string]any {
	return f(ctx, call)
}

// CommandHandler reacts to one push command action.
type CommandHandler func(ctx context.Context, payload map[string]any) error

type session struct {
	id   uint64
	port int
	conn Conn
}

// Bridge owns the active channel. A Connector feeds it sessions.
type Bridge struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	state    State
	sess     *session
	nextSess uint64
	calls    CallHandler
	commands map[string]CommandHandler

	pending *pendingCalls
	wg      sync.WaitGroup
}

// New returns a disconnected bridge with no handlers.
func New() *Bridge {
	b := &Bridge{
		logger:   xglog.WithComponent("bridge"),
		commands: make(map[string]CommandHandler),
		pending:  newPendingCalls(),
	}
	b.setState(newState(Disconnected, 0, 0))
	return b
}

// SetCallHandler installs the api_call handler.
func (b *Bridge) SetCallHandler(h CallHandler) {
	b.mu.Lock()
	b.calls = h
	b.mu.Unlock()
}

// HandleCommand registers fn for a push command action, replacing any previous one.
func (b *Bridge) HandleCommand(action string, fn CommandHandler) {
	b.mu.Lock()
	b.commands[action] = fn
	b.mu.Unlock()
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// ConnectedPort returns the port of the open session, if any.
func (b *Bridge) ConnectedPort() (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.sess == nil {
		return 0, false
	}
	return b.sess.port, true
}

// InFlight reports how many api_calls are being answered.
func (b *Bridge) InFlight() int {
	return b.pending.len()
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()
	statePhase.Set(float64(s.Phase))
	if prev.Phase != s.Phase || prev.Port != s.Port {
		b.logger.Debug().
			Str("event", "bridge.state").
			Str(xglog.FieldState, s.String()).
			Msg("connection state changed")
	}
}

// SendResponse writes an api_response for id if a session is open.
// Without one the response is dropped and logged; there is no redelivery.
func (b *Bridge) SendResponse(ctx context.Context, id string, data map[string]any) error {
	b.mu.RLock()
	sess := b.sess
	b.mu.RUnlock()
	return b.sendOn(ctx, sess, id, data)
}

func (b *Bridge) sendOn(ctx context.Context, sess *session, id string, data map[string]any) error {
	if sess == nil {
		droppedResponses.WithLabelValues("disconnected").Inc()
		b.logger.Warn().
			Str("event", "bridge.response_dropped").
			Str(xglog.FieldCallID, id).
			Msg("channel not connected, dropping response")
		return nil
	}
	frame, err := EncodeResponse(NewResponse(id, data))
	if err != nil {
		droppedResponses.WithLabelValues("encode").Inc()
		return fmt.Errorf("encode response %s: %w", id, err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := sess.conn.Write(wctx, frame); err != nil {
		droppedResponses.WithLabelValues("write").Inc()
		b.logger.Warn().
			Err(err).
			Str("event", "bridge.response_write_failed").
			Str(xglog.FieldCallID, id).
			Msg("failed to send response")
		return fmt.Errorf("write response %s: %w", id, err)
	}
	framesTotal.WithLabelValues("out", TypeAPIResponse).Inc()
	return nil
}

// serve runs one session until the channel closes or ctx ends.
// Calls outlive the session that carried them and are answered on whichever
// session is open when they complete. Only ctx ending cancels them.
func (b *Bridge) serve(ctx context.Context, port int, conn Conn) error {
	b.mu.Lock()
	b.nextSess++
	sess := &session{id: b.nextSess, port: port, conn: conn}
	b.sess = sess
	b.mu.Unlock()
	b.setState(newState(Connected, port, 0))

	logger := b.logger.With().Int(xglog.FieldPort, port).Uint64("session", sess.id).Logger()
	logger.Info().Str("event", "bridge.connected").Msg("connected to backend")

	sessCtx, cancel := context.WithCancel(ctx)
	cmds := make(chan Command, commandQueue)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.runCommands(sessCtx, logger, cmds)
	}()

	defer func() {
		cancel()
		if n := b.pending.len(); n > 0 {
			logger.Info().
				Str("event", "bridge.calls_carried_over").
				Int("calls", n).
				Msg("session ended with calls in flight, answers go to the next session")
		}
		b.mu.Lock()
		if b.sess == sess {
			b.sess = nil
		}
		b.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		data, err := conn.Read(sessCtx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Info().Err(err).Str("event", "bridge.closed").Msg("connection closed")
			return err
		}
		b.dispatchFrame(ctx, sessCtx, sess, logger, cmds, data)
	}
}

// dispatchFrame starts calls under ctx and queues commands for the session's
// worker. It blocks only while the command queue is full.
func (b *Bridge) dispatchFrame(ctx, sessCtx context.Context, sess *session, logger zerolog.Logger, cmds chan<- Command, data []byte) {
	in, err := DecodeInbound(data)
	if err != nil {
		framesTotal.WithLabelValues("in", "malformed").Inc()
		logger.Warn().Err(err).Str("event", "bridge.frame_dropped").Int("bytes", len(data)).Msg("dropping malformed frame")
		return
	}
	framesTotal.WithLabelValues("in", in.Type).Inc()

	switch {
	case in.Call != nil:
		b.startCall(ctx, sess, logger, *in.Call)
	case in.Command != nil:
		select {
		case cmds <- *in.Command:
		case <-sessCtx.Done():
		}
	}
}

func (b *Bridge) startCall(ctx context.Context, sess *session, logger zerolog.Logger, call Call) {
	b.mu.RLock()
	h := b.calls
	b.mu.RUnlock()
	if h == nil {
		logger.Warn().Str("event", "bridge.no_handler").Str(xglog.FieldCallKey, call.Key).Msg("no call handler installed")
		_ = b.sendOn(ctx, sess, call.ID, map[string]any{"errCode": 1, "errMsg": "no call handler", "payload": call})
		return
	}

	if !b.pending.add(call.ID, call.Key) {
		logger.Warn().
			Str("event", "bridge.duplicate_call").
			Str(xglog.FieldCallID, call.ID).
			Msg("call id already in flight, ignoring duplicate")
		return
	}
	callCtx := xglog.ContextWithCallID(ctx, call.ID)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.pending.remove(call.ID)

		result := h.HandleCall(callCtx, call)
		if ctx.Err() != nil {
			droppedResponses.WithLabelValues("shutdown").Inc()
			logger.Debug().
				Str("event", "bridge.response_dropped").
				Str(xglog.FieldCallID, call.ID).
				Msg("shutting down, dropping response")
			return
		}
		_ = b.SendResponse(ctx, call.ID, result)
	}()
}

// runCommands handles queued commands in arrival order until ctx ends.
func (b *Bridge) runCommands(ctx context.Context, logger zerolog.Logger, cmds <-chan Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-cmds:
			b.runCommand(ctx, logger, cmd)
		}
	}
}

func (b *Bridge) runCommand(ctx context.Context, logger zerolog.Logger, cmd Command) {
	b.mu.RLock()
	fn := b.commands[cmd.Action]
	b.mu.RUnlock()

	ev := logger.With().Str(xglog.FieldAction, cmd.Action).Logger()
	if fn == nil {
		ev.Warn().Str("event", "bridge.unknown_command").Msg("no handler for command")
		return
	}
	if err := fn(ctx, cmd.Payload); err != nil {
		ev.Warn().Err(err).Str("event", "bridge.command_failed").Msg("command handler failed")
		return
	}
	ev.Debug().Str("event", "bridge.command").Msg("command handled")
}

// Wait blocks until all call goroutines have returned.
func (b *Bridge) Wait() {
	b.wg.Wait()
}
