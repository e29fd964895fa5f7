// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dispatch answers backend api_calls by invoking the host page's capabilities.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/wxbridge/internal/bridge"
	"github.com/ManuGH/wxbridge/internal/host"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
)

// Request keys.
const (
	KeyContactList = "key:channels:contact_list"
	KeyFeedList    = "key:channels:feed_list"
	KeyFeedProfile = "key:channels:feed_profile"
)

// Response codes.
const (
	CodeOK             = 0
	CodeFailure        = 1
	CodeUnmatchedKey   = 1000
	CodeProfileFailure = 1011
)

var (
	// ErrCapabilitiesNotReady means the host never published capabilities within the wait budget.
	ErrCapabilitiesNotReady = errors.New("host capabilities not initialized, reload the page and retry")
	// ErrUnmatchedKey means the call's key is not in the dispatch table.
	ErrUnmatchedKey = errors.New("unmatched key")
)

// CapabilitySource yields host capabilities, waiting for them if necessary.
type CapabilitySource interface {
	Wait(ctx context.Context, budget, poll time.Duration) (host.Capabilities, error)
}

// Options configures a Dispatcher.
type Options struct {
	WaitBudget   time.Duration
	PollInterval time.Duration
}

type handlerFunc func(ctx context.Context, caps host.Capabilities, body map[string]any) (map[string]any, error)

// Dispatcher maps request keys to capability calls. It implements bridge.CallHandler.
type Dispatcher struct {
	source CapabilitySource
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
	table  map[string]handlerFunc

	mu       sync.RWMutex
	username string
}

var _ bridge.CallHandler = (*Dispatcher)(nil)

// New creates a Dispatcher. Zero option values fall back to 10s and 500ms.
func New(source CapabilitySource, opts Options) *Dispatcher {
	if opts.WaitBudget <= 0 {
		opts.WaitBudget = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	d := &Dispatcher{
		source: source,
		opts:   opts,
		logger: xglog.WithComponent("dispatch"),
		now:    time.Now,
	}
	d.table = map[string]handlerFunc{
		KeyContactList: d.contactList,
		KeyFeedList:    d.feedList,
		KeyFeedProfile: d.feedProfile,
	}
	return d
}

// SetUsername records the signed-in account announced by the host's init event.
func (d *Dispatcher) SetUsername(name string) {
	d.mu.Lock()
	d.username = name
	d.mu.Unlock()
}

// Username returns the recorded account name.
func (d *Dispatcher) Username() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.username
}

// HandleCall implements bridge.CallHandler. It always returns exactly one response object.
func (d *Dispatcher) HandleCall(ctx context.Context, call bridge.Call) (resp map[string]any) {
	start := time.Now()
	ctx, span := telemetry.Tracer("wxbridge/dispatch").Start(ctx, "dispatch.call")
	span.SetAttributes(telemetry.CallAttributes(call.ID, call.Key)...)
	logger := d.logger.With().Str(xglog.FieldCallID, call.ID).Str(xglog.FieldCallKey, call.Key).Logger()

	defer func() {
		if r := recover(); r != nil {
			resp = failure(CodeFailure, fmt.Sprintf("api call failed: %v", r), echo(call))
		}
		code := responseCode(resp)
		callsTotal.WithLabelValues(keyLabel(call.Key), codeLabel(code)).Inc()
		callDuration.WithLabelValues(keyLabel(call.Key)).Observe(time.Since(start).Seconds())
		if code != CodeOK {
			span.SetStatus(codes.Error, fmt.Sprint(resp["errMsg"]))
			logger.Warn().Str("event", "dispatch.failed").Int("code", code).Interface("errMsg", resp["errMsg"]).Msg("api call answered with error")
		} else {
			logger.Debug().Str("event", "dispatch.ok").Dur("took", time.Since(start)).Msg("api call answered")
		}
		span.End()
	}()

	caps, err := d.source.Wait(ctx, d.opts.WaitBudget, d.opts.PollInterval)
	if err != nil {
		if errors.Is(err, host.ErrNotReady) {
			return map[string]any{"errCode": CodeFailure, "errMsg": ErrCapabilitiesNotReady.Error()}
		}
		return failure(CodeFailure, err.Error(), echo(call))
	}

	fn, ok := d.table[call.Key]
	if !ok {
		return failure(CodeUnmatchedKey, fmt.Sprintf("%s: %s", ErrUnmatchedKey, call.Key), echo(call))
	}

	result, err := fn(ctx, caps, call.Body)
	if err != nil {
		var pe *profileError
		if errors.As(err, &pe) {
			return failure(CodeProfileFailure, pe.Error(), call.Body)
		}
		return failure(CodeFailure, err.Error(), echo(call))
	}
	return result
}

func (d *Dispatcher) contactList(ctx context.Context, caps host.Capabilities, body map[string]any) (map[string]any, error) {
	payload := map[string]any{
		"query":     str(body["keyword"]),
		"scene":     13,
		"requestId": strconv.FormatInt(d.now().UnixMilli(), 10),
	}
	r, err := caps.FinderSearch(ctx, payload)
	if err != nil {
		return nil, err
	}
	return withPayload(r, payload), nil
}

func (d *Dispatcher) feedList(ctx context.Context, caps host.Capabilities, body map[string]any) (map[string]any, error) {
	lastBuffer := ""
	if marker := str(body["next_marker"]); marker != "" {
		unescaped, err := url.PathUnescape(marker)
		if err != nil {
			return nil, fmt.Errorf("decode next_marker: %w", err)
		}
		lastBuffer = unescaped
	}
	payload := map[string]any{
		"username":       str(body["username"]),
		"finderUsername": d.Username(),
		"lastBuffer":     lastBuffer,
		"needFansCount":  0,
		"objectId":       "0",
	}
	r, err := caps.FinderUserPage(ctx, payload)
	if err != nil {
		return nil, err
	}
	return withPayload(r, payload), nil
}

// profileError marks detail-fetch failures, which carry their own response code.
type profileError struct{ err error }

func (e *profileError) Error() string { return e.err.Error() }
func (e *profileError) Unwrap() error { return e.err }

func (d *Dispatcher) feedProfile(ctx context.Context, caps host.Capabilities, body map[string]any) (map[string]any, error) {
	oid := firstNonEmpty(str(body["objectId"]), str(body["oid"]))
	nid := firstNonEmpty(str(body["nonceId"]), str(body["nid"]))
	if raw := str(body["url"]); raw != "" {
		var err error
		oid, nid, err = IdentifiersFromURL(raw)
		if err != nil {
			return nil, &profileError{err}
		}
	}
	if oid == "" {
		return nil, &profileError{errors.New("missing object id")}
	}
	if i := strings.IndexByte(oid, '_'); i >= 0 {
		oid = oid[:i]
	}

	payload := map[string]any{
		"needObject":         1,
		"lastBuffer":         "",
		"scene":              146,
		"direction":          2,
		"identityScene":      2,
		"pullScene":          6,
		"objectid":           oid,
		"objectNonceId":      nid,
		"encrypted_objectid": "",
	}
	r, err := caps.FinderGetCommentDetail(ctx, payload)
	if err != nil {
		return nil, &profileError{err}
	}
	return withPayload(r, payload), nil
}

// withPayload copies the host result and adds the arguments actually used.
func withPayload(result map[string]any, payload map[string]any) map[string]any {
	out := make(map[string]any, len(result)+1)
	for k, v := range result {
		out[k] = v
	}
	out["payload"] = payload
	return out
}

func failure(code int, msg string, payload any) map[string]any {
	return map[string]any{"errCode": code, "errMsg": msg, "payload": payload}
}

func echo(call bridge.Call) map[string]any {
	return map[string]any{"id": call.ID, "key": call.Key, "body": call.Body}
}

func responseCode(resp map[string]any) int {
	switch n := resp["errCode"].(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return CodeOK
	}
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
