// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks a resolved configuration. All problems are reported together.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(cfg.Bridge.Host) == "" {
		add("bridge.host must not be empty")
	}
	if !strings.HasPrefix(cfg.Bridge.Path, "/") {
		add("bridge.path must start with '/': %q", cfg.Bridge.Path)
	}
	if len(cfg.Bridge.Ports) == 0 {
		add("bridge.ports must list at least one port")
	}
	for _, p := range cfg.Bridge.Ports {
		if p < 1 || p > 65535 {
			add("bridge.ports: %d out of range", p)
		}
	}
	if cfg.Bridge.ConnectTimeout <= 0 {
		add("bridge.connectTimeout must be positive")
	}
	if cfg.Bridge.RetryBackoff < 0 {
		add("bridge.retryBackoff must not be negative")
	}

	if cfg.Dispatch.WaitBudget <= 0 {
		add("dispatch.waitBudget must be positive")
	}
	if cfg.Dispatch.PollInterval <= 0 {
		add("dispatch.pollInterval must be positive")
	}

	if cfg.Backend.BaseURL != "" {
		u, err := url.Parse(cfg.Backend.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("backend.baseURL must be an absolute http(s) URL: %q", cfg.Backend.BaseURL)
		}
	}

	if cfg.Batch.MaxItems <= 0 {
		add("batch.maxItems must be positive")
	}
	if cfg.Batch.PageSize <= 0 {
		add("batch.pageSize must be positive")
	}
	if cfg.Batch.ItemDelay < 0 {
		add("batch.itemDelay must not be negative")
	}

	switch cfg.Store.Backend {
	case StoreFile, StoreSQLite, StoreBadger:
	case StoreRedis:
		if cfg.Store.RedisAddr == "" {
			add("store.redisAddr is required for the redis backend")
		}
	default:
		add("store.backend: unsupported value %q", cfg.Store.Backend)
	}

	if cfg.API.Enabled && cfg.API.ListenAddr == "" {
		add("api.listenAddr is required when the API is enabled")
	}
	if cfg.API.RateLimit < 0 {
		add("api.rateLimit must not be negative")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter must be grpc or http: %q", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate must be within [0,1]")
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
