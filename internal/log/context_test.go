// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		call  string
		run   string
		wantC string
		wantR string
	}{
		{name: "nil context", ctx: nil, call: "c-1", run: "r-1", wantC: "c-1", wantR: "r-1"},
		{name: "background", ctx: context.Background(), call: "c-2", wantC: "c-2"},
		{name: "empty", ctx: context.Background()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithCallID(tt.ctx, tt.call)
			if tt.run != "" {
				ctx = ContextWithRunID(ctx, tt.run)
			}
			assert.Equal(t, tt.wantC, CallIDFromContext(ctx))
			assert.Equal(t, tt.wantR, RunIDFromContext(ctx))
		})
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRunID(ContextWithCallID(context.Background(), "abc"), "run-9")
	l := WithContext(ctx, base)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry[FieldCallID])
	assert.Equal(t, "run-9", entry[FieldRunID])
}

func TestRequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), "req-7")
	assert.Equal(t, "req-7", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))

	l := WithContext(ctx, zerolog.New(&buf))
	l.Info().Msg("x")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-7", entry[FieldRequestID])
}

func TestWithContextNoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	l := WithContext(context.Background(), base)
	l.Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, FieldCallID)
}
