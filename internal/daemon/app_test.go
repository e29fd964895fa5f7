// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/wxbridge/internal/config"
	"github.com/ManuGH/wxbridge/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.DataDir = t.TempDir()
	cfg.Store.Path = filepath.Join(cfg.DataDir, "state.json")
	cfg.Bridge.Ports = []int{closedPort(t)}
	cfg.Bridge.ConnectTimeout = 200 * time.Millisecond
	cfg.Bridge.RetryBackoff = 50 * time.Millisecond
	cfg.Backend.LocalToken = "tok"
	cfg.API.RateLimit = 0
	return cfg
}

func TestBootstrap_RequiresConfig(t *testing.T) {
	_, err := Bootstrap(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestBootstrap_BadStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "tape"
	_, err := Bootstrap(context.Background(), config.NewConfigHolder(cfg, config.NewLoader("", "test")))
	require.Error(t, err)
}

func TestApp_RunServesAPIAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Bootstrap(ctx, config.NewConfigHolder(cfg, config.NewLoader("", "test")))
	require.NoError(t, err)
	app.reloadSignal = nil
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	app.listener = ln

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 2 * time.Second}
	base := "http://" + ln.Addr().String()

	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Bus().Publish(ctx, host.Event{
		Topic: host.TopicInit,
		Data:  map[string]any{keyUsername: "v2_me"},
	}))

	require.Eventually(t, func() bool {
		req, _ := http.NewRequest(http.MethodGet, base+"/api/state", nil)
		req.Header.Set("X-Local-Auth", "tok")
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		var st struct {
			Username string `json:"username"`
		}
		if json.NewDecoder(resp.Body).Decode(&st) != nil {
			return false
		}
		return st.Username == "v2_me"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
}

func TestApp_ApplyReloadedConfig(t *testing.T) {
	cfg := testConfig(t)
	app, err := Bootstrap(context.Background(), config.NewConfigHolder(cfg, config.NewLoader("", "test")))
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	cfg.Batch.ForceRedownload = true
	app.apply(cfg)
	assert.True(t, app.Orchestrator().ForceRedownload())
}

func TestApp_RunWithoutConnector(t *testing.T) {
	app := &App{}
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingConnector)
}
