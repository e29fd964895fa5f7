// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types on the wire.
const (
	TypeAPICall     = "api_call"
	TypeCommand     = "cmd"
	TypeAPIResponse = "api_response"
)

// ErrMalformedFrame classifies frames that cannot be decoded. They are dropped.
var ErrMalformedFrame = errors.New("malformed frame")

// Call is a backend-originated request the client must answer exactly once.
type Call struct {
	ID   string         `json:"id"`
	Key  string         `json:"key"`
	Body map[string]any `json:"body"`
}

// Command is a backend push with no per-id response.
type Command struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// Inbound is a decoded frame; exactly one of Call and Command is set.
type Inbound struct {
	Type    string
	Call    *Call
	Command *Command
}

type rawFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeInbound parses a text frame. Unknown types and bad JSON yield ErrMalformedFrame.
func DecodeInbound(data []byte) (Inbound, error) {
	var f rawFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Inbound{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	switch f.Type {
	case TypeAPICall:
		var c Call
		if err := json.Unmarshal(f.Data, &c); err != nil {
			return Inbound{}, fmt.Errorf("%w: api_call data: %w", ErrMalformedFrame, err)
		}
		if c.ID == "" {
			return Inbound{}, fmt.Errorf("%w: api_call without id", ErrMalformedFrame)
		}
		if c.Body == nil {
			c.Body = map[string]any{}
		}
		return Inbound{Type: f.Type, Call: &c}, nil
	case TypeCommand:
		var c Command
		if err := json.Unmarshal(f.Data, &c); err != nil {
			return Inbound{}, fmt.Errorf("%w: cmd data: %w", ErrMalformedFrame, err)
		}
		if c.Payload == nil {
			c.Payload = map[string]any{}
		}
		return Inbound{Type: f.Type, Command: &c}, nil
	default:
		return Inbound{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
}

// Response is the data part of an api_response frame.
type Response struct {
	ID      string         `json:"id"`
	Data    map[string]any `json:"data"`
	ErrCode int            `json:"errCode"`
	ErrMsg  string         `json:"errMsg"`
}

type responseFrame struct {
	Type string   `json:"type"`
	Data Response `json:"data"`
}

// NewResponse wraps data for id. errCode and errMsg are lifted from data,
// defaulting to 0 and "ok".
func NewResponse(id string, data map[string]any) Response {
	if data == nil {
		data = map[string]any{}
	}
	r := Response{ID: id, Data: data, ErrMsg: "ok"}
	if code, ok := asInt(data["errCode"]); ok && code != 0 {
		r.ErrCode = code
	}
	if msg, ok := data["errMsg"].(string); ok && msg != "" {
		r.ErrMsg = msg
	}
	return r
}

// EncodeResponse renders the api_response frame.
func EncodeResponse(r Response) ([]byte, error) {
	return json.Marshal(responseFrame{Type: TypeAPIResponse, Data: r})
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
