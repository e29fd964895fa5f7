// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/wxbridge/internal/platform/httpx"
)

const maxRelayResponse = 16 << 20

// HTTPCapabilities forwards capability calls as JSON POSTs to a relay that
// executes them inside the host page, e.g. a browser automation process.
// Each capability maps to POST <endpoint>/<name>.
type HTTPCapabilities struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCapabilities returns a relay-backed capability set.
func NewHTTPCapabilities(endpoint string, timeout time.Duration) *HTTPCapabilities {
	return &HTTPCapabilities{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   httpx.NewClient(timeout),
	}
}

func (h *HTTPCapabilities) FinderSearch(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return h.call(ctx, "finderSearch", payload)
}

func (h *HTTPCapabilities) FinderUserPage(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return h.call(ctx, "finderUserPage", payload)
}

func (h *HTTPCapabilities) FinderGetCommentDetail(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return h.call(ctx, "finderGetCommentDetail", payload)
}

// StartCommentCollection implements CommentCollector.
func (h *HTTPCapabilities) StartCommentCollection(ctx context.Context) error {
	_, err := h.call(ctx, "startCommentCollection", map[string]any{})
	return err
}

func (h *HTTPCapabilities) call(ctx context.Context, name string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/"+name, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayResponse))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: relay returned %d: %s", name, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	out := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", name, err)
	}
	return out, nil
}
