// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package backend is the HTTP client for the local backend's
// /__wx_channels_api surface.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/wxbridge/internal/feed"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/platform/httpx"
	"github.com/rs/zerolog"
)

// Endpoint paths.
const (
	PathDownloadVideo  = "/__wx_channels_api/download_video"
	PathSaveCover      = "/__wx_channels_api/save_cover"
	PathCancelDownload = "/__wx_channels_api/cancel_download"
	PathTip            = "/__wx_channels_api/tip"
	PathProfile        = "/__wx_channels_api/profile"
	PathExport         = "/api/export/downloads"
)

// HeaderLocalAuth carries the local token when one is configured.
const HeaderLocalAuth = "X-Local-Auth"

const maxResponseBody = 1 << 20

var (
	// ErrCancelled marks a request aborted by its context. It is not a download failure.
	ErrCancelled = errors.New("request cancelled")
	// ErrTransport covers every other failure to get a usable answer.
	ErrTransport = errors.New("backend request failed")
	// ErrNoAddress means neither a base URL nor a connected port is known.
	ErrNoAddress = errors.New("backend address unknown")
)

// Options configures a Client.
type Options struct {
	// BaseURL overrides the backend address. Empty means
	// http://127.0.0.1:<Port()>, following the bridge's connected port.
	BaseURL    string
	Port       func() int
	LocalToken string
	Timeout    time.Duration
}

// DownloadResult is the backend's answer to download_video.
type DownloadResult struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CoverRequest is the body of save_cover.
type CoverRequest struct {
	CoverURL  string `json:"coverUrl"`
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	ForceSave bool   `json:"forceSave"`
}

// Client talks to the backend.
type Client struct {
	http    *http.Client
	baseURL string
	port    func() int
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a backend client.
func NewClient(opts Options) *Client {
	return &Client{
		http:    httpx.NewClient(opts.Timeout),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		port:    opts.Port,
		token:   opts.LocalToken,
		logger:  xglog.WithComponent("backend"),
	}
}

// SetLocalToken replaces the X-Local-Auth token for subsequent requests.
func (c *Client) SetLocalToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) localToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL resolves the backend address for the next request.
func (c *Client) BaseURL() (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	if c.port != nil {
		if p := c.port(); p > 0 {
			return "http://127.0.0.1:" + strconv.Itoa(p), nil
		}
	}
	return "", ErrNoAddress
}

// DownloadVideo asks the backend to fetch and store one video. A non-2xx
// status is returned as an ErrTransport error.
func (c *Client) DownloadVideo(ctx context.Context, req feed.DownloadRequest) (DownloadResult, error) {
	var res DownloadResult
	err := c.postJSON(ctx, "download_video", PathDownloadVideo, req, &res)
	return res, err
}

// SaveCover asks the backend to store an item's cover image.
func (c *Client) SaveCover(ctx context.Context, req CoverRequest) (DownloadResult, error) {
	var res DownloadResult
	err := c.postJSON(ctx, "save_cover", PathSaveCover, req, &res)
	return res, err
}

// CancelDownload tells the backend to stop an in-flight download.
func (c *Client) CancelDownload(ctx context.Context, videoID string) error {
	return c.postJSON(ctx, "cancel_download", PathCancelDownload, map[string]string{"videoId": videoID}, nil)
}

// Tip shows a status line in the backend's console.
func (c *Client) Tip(ctx context.Context, msg string) error {
	return c.postJSON(ctx, "tip", PathTip, map[string]string{"msg": msg}, nil)
}

// Profile reports the item currently open in the host page.
func (c *Client) Profile(ctx context.Context, item feed.CandidateItem) error {
	return c.postJSON(ctx, "profile", PathProfile, item, nil)
}

// ExportDownloads streams the backend's download history in the given format
// ("csv" or "json") into w and returns the number of bytes copied.
func (c *Client) ExportDownloads(ctx context.Context, format string, w io.Writer) (int64, error) {
	const endpoint = "export"
	start := time.Now()
	base, err := c.BaseURL()
	if err != nil {
		observe(endpoint, err, start)
		return 0, err
	}
	if format == "" {
		format = "csv"
	}
	u := base + PathExport + "?" + url.Values{"format": {format}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(ctx, endpoint, err)
		observe(endpoint, err, start)
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(endpoint, resp); err != nil {
		observe(endpoint, err, start)
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		err = classify(ctx, endpoint, err)
	}
	observe(endpoint, err, start)
	return n, err
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		observe(endpoint, err, start)
		if err != nil && !errors.Is(err, ErrCancelled) {
			c.logger.Debug().Err(err).Str("event", "backend.request_failed").Str("endpoint", endpoint).Msg("backend request failed")
		}
	}()

	base, err := c.BaseURL()
	if err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(endpoint, resp); err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return classify(ctx, endpoint, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", ErrTransport, endpoint, err)
	}
	return nil
}

func (c *Client) decorate(req *http.Request) {
	if tok := c.localToken(); tok != "" {
		req.Header.Set(HeaderLocalAuth, tok)
	}
}

func checkStatus(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: %s: HTTP %d: %s", ErrTransport, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// classify maps a client error to ErrCancelled when the caller's context ended.
func classify(ctx context.Context, endpoint string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", ErrCancelled, endpoint, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
}
