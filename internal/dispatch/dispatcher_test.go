// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/ManuGH/wxbridge/internal/bridge"
	"github.com/ManuGH/wxbridge/internal/host"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

type recordingCaps struct {
	method  string
	payload map[string]any
	result  map[string]any
	err     error
	panics  bool
}

func (c *recordingCaps) record(method string, payload map[string]any) (map[string]any, error) {
	if c.panics {
		panic("host exploded")
	}
	c.method = method
	c.payload = payload
	return c.result, c.err
}

func (c *recordingCaps) FinderSearch(_ context.Context, p map[string]any) (map[string]any, error) {
	return c.record("finderSearch", p)
}

func (c *recordingCaps) FinderUserPage(_ context.Context, p map[string]any) (map[string]any, error) {
	return c.record("finderUserPage", p)
}

func (c *recordingCaps) FinderGetCommentDetail(_ context.Context, p map[string]any) (map[string]any, error) {
	return c.record("finderGetCommentDetail", p)
}

func newDispatcher(caps host.Capabilities) *Dispatcher {
	reg := host.NewRegistry()
	if caps != nil {
		reg.Set(caps)
	}
	d := New(reg, Options{WaitBudget: 40 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	d.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return d
}

func TestHandleCall_ContactList(t *testing.T) {
	caps := &recordingCaps{result: map[string]any{"errCode": float64(0), "data": "list"}}
	d := newDispatcher(caps)

	resp := d.HandleCall(context.Background(), bridge.Call{ID: "1", Key: KeyContactList, Body: map[string]any{"keyword": "cats"}})

	assert.Equal(t, "finderSearch", caps.method)
	want := map[string]any{"query": "cats", "scene": 13, "requestId": "1700000000000"}
	assert.Empty(t, cmp.Diff(want, caps.payload))
	assert.Equal(t, "list", resp["data"])
	assert.Empty(t, cmp.Diff(want, resp["payload"]))
}

func TestHandleCall_FeedListUsesInitUsername(t *testing.T) {
	caps := &recordingCaps{result: map[string]any{}}
	d := newDispatcher(caps)
	d.SetUsername("me@finder")

	d.HandleCall(context.Background(), bridge.Call{ID: "2", Key: KeyFeedList, Body: map[string]any{
		"username":    "author@finder",
		"next_marker": url.PathEscape("buf/+=="),
	}})

	assert.Equal(t, "finderUserPage", caps.method)
	assert.Empty(t, cmp.Diff(map[string]any{
		"username":       "author@finder",
		"finderUsername": "me@finder",
		"lastBuffer":     "buf/+==",
		"needFansCount":  0,
		"objectId":       "0",
	}, caps.payload))
}

func TestHandleCall_FeedProfileFromURL(t *testing.T) {
	caps := &recordingCaps{result: map[string]any{"object": "x"}}
	d := newDispatcher(caps)
	oid := base64.StdEncoding.EncodeToString([]byte("555_1"))
	nid := base64.StdEncoding.EncodeToString([]byte("777"))

	resp := d.HandleCall(context.Background(), bridge.Call{ID: "3", Key: KeyFeedProfile, Body: map[string]any{
		"objectId": "555_1", "nonceId": "777",
	}})
	assert.Equal(t, "555", caps.payload["objectid"])
	assert.Equal(t, "777", caps.payload["objectNonceId"])
	assert.Equal(t, 146, caps.payload["scene"])
	assert.Equal(t, "x", resp["object"])

	digits := base64.StdEncoding.EncodeToString([]byte("555"))
	d.HandleCall(context.Background(), bridge.Call{ID: "4", Key: KeyFeedProfile, Body: map[string]any{
		"url": "https://h/feed?oid=" + url.QueryEscape(digits) + "&nid=" + url.QueryEscape(nid),
	}})
	assert.Equal(t, "555", caps.payload["objectid"])
	assert.Equal(t, "777", caps.payload["objectNonceId"])

	resp = d.HandleCall(context.Background(), bridge.Call{ID: "5", Key: KeyFeedProfile, Body: map[string]any{
		"url": "https://h/feed?oid=" + url.QueryEscape(oid),
	}})
	assert.Equal(t, CodeProfileFailure, resp["errCode"])
	assert.Equal(t, "https://h/feed?oid="+url.QueryEscape(oid), resp["payload"].(map[string]any)["url"])
}

func TestHandleCall_ProfileCapabilityError(t *testing.T) {
	caps := &recordingCaps{err: errors.New("detail unavailable")}
	resp := newDispatcher(caps).HandleCall(context.Background(), bridge.Call{ID: "6", Key: KeyFeedProfile, Body: map[string]any{"oid": "1"}})

	assert.Equal(t, CodeProfileFailure, resp["errCode"])
	assert.Equal(t, "detail unavailable", resp["errMsg"])
}

func TestHandleCall_UnmatchedKey(t *testing.T) {
	resp := newDispatcher(&recordingCaps{}).HandleCall(context.Background(), bridge.Call{ID: "7", Key: "key:nope", Body: map[string]any{}})

	assert.Equal(t, CodeUnmatchedKey, resp["errCode"])
	assert.Contains(t, resp["errMsg"], "key:nope")
	assert.Equal(t, "7", resp["payload"].(map[string]any)["id"])
}

func TestHandleCall_GenericFailure(t *testing.T) {
	caps := &recordingCaps{err: errors.New("search broke")}
	resp := newDispatcher(caps).HandleCall(context.Background(), bridge.Call{ID: "8", Key: KeyContactList, Body: map[string]any{}})

	assert.Equal(t, CodeFailure, resp["errCode"])
	assert.Equal(t, "search broke", resp["errMsg"])
	assert.Equal(t, KeyContactList, resp["payload"].(map[string]any)["key"])
}

func TestHandleCall_PanicBecomesFailure(t *testing.T) {
	resp := newDispatcher(&recordingCaps{panics: true}).HandleCall(context.Background(), bridge.Call{ID: "9", Key: KeyContactList, Body: map[string]any{}})
	assert.Equal(t, CodeFailure, resp["errCode"])
	assert.Contains(t, resp["errMsg"], "host exploded")
}

func TestHandleCall_CapabilitiesNeverReady(t *testing.T) {
	start := time.Now()
	resp := newDispatcher(nil).HandleCall(context.Background(), bridge.Call{ID: "10", Key: KeyContactList, Body: map[string]any{}})

	assert.Equal(t, CodeFailure, resp["errCode"])
	assert.Equal(t, ErrCapabilitiesNotReady.Error(), resp["errMsg"])
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestHandleCall_ResponseCarriesHostErrCode(t *testing.T) {
	caps := &recordingCaps{result: map[string]any{"errCode": float64(-1), "errMsg": "host says no"}}
	resp := newDispatcher(caps).HandleCall(context.Background(), bridge.Call{ID: "11", Key: KeyContactList, Body: map[string]any{}})

	r := bridge.NewResponse("11", resp)
	assert.Equal(t, -1, r.ErrCode)
	assert.Equal(t, "host says no", r.ErrMsg)
}
