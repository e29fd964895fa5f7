// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/wxbridge/internal/feed"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadVideo_SendsBodyAndToken(t *testing.T) {
	type seen struct {
		path, auth, ctype string
		body              feed.DownloadRequest
	}
	reqs := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := seen{path: r.URL.Path, auth: r.Header.Get(HeaderLocalAuth), ctype: r.Header.Get("Content-Type")}
		_ = json.NewDecoder(r.Body).Decode(&s.body)
		reqs <- s
		_, _ = io.WriteString(w, `{"success":true,"skipped":true,"path":"/d/a.mp4"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/", LocalToken: "secret"})
	res, err := c.DownloadVideo(context.Background(), feed.DownloadRequest{VideoURL: "u", VideoID: "1", ForceSave: true})
	require.NoError(t, err)

	assert.Equal(t, DownloadResult{Success: true, Skipped: true, Path: "/d/a.mp4"}, res)
	got := <-reqs
	assert.Equal(t, PathDownloadVideo, got.path)
	assert.Equal(t, "secret", got.auth)
	assert.Equal(t, "application/json", got.ctype)
	assert.Equal(t, "1", got.body.VideoID)
	assert.True(t, got.body.ForceSave)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	present := make(chan bool, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Header[http.CanonicalHeaderKey(HeaderLocalAuth)]
		present <- ok
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, c.Tip(context.Background(), "hello"))
	assert.False(t, <-present)

	c.SetLocalToken("t2")
	require.NoError(t, c.Tip(context.Background(), "hello"))
	assert.True(t, <-present)
}

func TestDownloadVideo_Non2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))
	defer srv.Close()

	before := testutil.ToFloat64(requestsTotal.WithLabelValues("download_video", "error"))
	_, err := NewClient(Options{BaseURL: srv.URL}).DownloadVideo(context.Background(), feed.DownloadRequest{})
	require.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.Equal(t, before+1, testutil.ToFloat64(requestsTotal.WithLabelValues("download_video", "error")))
}

func TestDownloadVideo_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := NewClient(Options{BaseURL: srv.URL}).DownloadVideo(ctx, feed.DownloadRequest{})
	require.ErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestBaseURL_FollowsPort(t *testing.T) {
	port := 0
	c := NewClient(Options{Port: func() int { return port }})

	_, err := c.BaseURL()
	require.ErrorIs(t, err, ErrNoAddress)

	port = 9527
	base, err := c.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9527", base)

	fixed := NewClient(Options{BaseURL: "http://backend:1/", Port: func() int { return 2026 }})
	base, err = fixed.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:1", base)
}

func TestBaseURL_ConnectedPortServer(t *testing.T) {
	bodies := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["path"] = r.URL.Path
		bodies <- body
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c := NewClient(Options{Port: func() int { return port }})
	require.NoError(t, c.CancelDownload(context.Background(), "v-1"))
	assert.Equal(t, map[string]string{"videoId": "v-1", "path": PathCancelDownload}, <-bodies)
}

func TestProfileAndSaveCover(t *testing.T) {
	paths := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, c.Profile(context.Background(), feed.CandidateItem{ID: "1", Kind: feed.KindMedia}))
	res, err := c.SaveCover(context.Background(), CoverRequest{CoverURL: "c", VideoID: "1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, PathProfile, <-paths)
	assert.Equal(t, PathSaveCover, <-paths)
}

func TestExportDownloads(t *testing.T) {
	const csv = "id,title\n1,Noodles\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathExport, r.URL.Path)
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.Copy(w, strings.NewReader(csv))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := NewClient(Options{BaseURL: srv.URL}).ExportDownloads(context.Background(), "", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(csv)), n)
	assert.Equal(t, csv, buf.String())
}

func TestExportDownloads_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	var buf bytes.Buffer
	_, err := NewClient(Options{BaseURL: srv.URL}).ExportDownloads(context.Background(), "json", &buf)
	require.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, buf.Len())
}
