// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"type":"api_call","data":{"id":"1","key":"key:channels:feed_list","body":{"username":"u"}}}`))
	require.NoError(t, err)
	require.NotNil(t, in.Call)
	assert.Equal(t, "1", in.Call.ID)
	assert.Equal(t, "key:channels:feed_list", in.Call.Key)
	assert.Equal(t, "u", in.Call.Body["username"])

	in, err = DecodeInbound([]byte(`{"type":"cmd","data":{"action":"download_progress"}}`))
	require.NoError(t, err)
	require.NotNil(t, in.Command)
	assert.Equal(t, "download_progress", in.Command.Action)
	assert.NotNil(t, in.Command.Payload)
}

func TestDecodeInbound_Malformed(t *testing.T) {
	for _, frame := range []string{
		`not json`,
		`{"type":"api_call","data":"oops"}`,
		`{"type":"api_call","data":{"key":"k"}}`,
		`{"type":"api_response","data":{}}`,
		`{}`,
	} {
		_, err := DecodeInbound([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformedFrame, frame)
	}
}

func TestNewResponse_LiftsErrorFields(t *testing.T) {
	r := NewResponse("7", map[string]any{"errCode": 1000, "errMsg": "unmatched"})
	assert.Equal(t, 1000, r.ErrCode)
	assert.Equal(t, "unmatched", r.ErrMsg)

	r = NewResponse("8", map[string]any{"data": 1})
	assert.Equal(t, 0, r.ErrCode)
	assert.Equal(t, "ok", r.ErrMsg)

	r = NewResponse("9", nil)
	assert.NotNil(t, r.Data)
}

func TestEncodeResponse_WireShape(t *testing.T) {
	raw, err := EncodeResponse(NewResponse("42", map[string]any{"errCode": float64(1), "errMsg": "not ready"}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "api_response", got["type"])
	data := got["data"].(map[string]any)
	assert.Equal(t, "42", data["id"])
	assert.Equal(t, float64(1), data["errCode"])
	assert.Equal(t, "not ready", data["errMsg"])
	assert.Equal(t, "not ready", data["data"].(map[string]any)["errMsg"])
}
