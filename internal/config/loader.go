// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment keys. Every one of them overrides the matching file value.
const (
	EnvDataDir         = "WXBRIDGE_DATA_DIR"
	EnvLogLevel        = "WXBRIDGE_LOG_LEVEL"
	EnvBridgeHost      = "WXBRIDGE_HOST"
	EnvPorts           = "WXBRIDGE_PORTS"
	EnvConnectTimeout  = "WXBRIDGE_CONNECT_TIMEOUT"
	EnvRetryBackoff    = "WXBRIDGE_RETRY_BACKOFF"
	EnvWaitBudget      = "WXBRIDGE_WAIT_BUDGET"
	EnvBackendURL      = "WXBRIDGE_BACKEND_URL"
	EnvLocalToken      = "WXBRIDGE_LOCAL_TOKEN"
	EnvMaxItems        = "WXBRIDGE_MAX_ITEMS"
	EnvPageSize        = "WXBRIDGE_PAGE_SIZE"
	EnvItemDelay       = "WXBRIDGE_ITEM_DELAY"
	EnvForceRedownload = "WXBRIDGE_FORCE_REDOWNLOAD"
	EnvStore           = "WXBRIDGE_STORE"
	EnvStorePath       = "WXBRIDGE_STORE_PATH"
	EnvRedisAddr       = "WXBRIDGE_REDIS_ADDR"
	EnvRedisPassword   = "WXBRIDGE_REDIS_PASSWORD"
	EnvRedisDB         = "WXBRIDGE_REDIS_DB"
	EnvAPIEnabled      = "WXBRIDGE_API_ENABLED"
	EnvAPIListen       = "WXBRIDGE_API_LISTEN"
	EnvAPIRateLimit    = "WXBRIDGE_API_RATE_LIMIT"
	EnvHostEndpoint    = "WXBRIDGE_HOST_ENDPOINT"
	EnvTelemetry       = "WXBRIDGE_TELEMETRY_ENABLED"
	EnvOTLPExporter    = "WXBRIDGE_OTLP_EXPORTER"
	EnvOTLPEndpoint    = "WXBRIDGE_OTLP_ENDPOINT"
	EnvSamplingRate    = "WXBRIDGE_TRACE_SAMPLING"
)

// Loader resolves configuration from defaults, an optional YAML file and the environment.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader. An empty configPath means ENV-only configuration.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path, if any.
func (l *Loader) Path() string { return l.configPath }

// Load applies defaults, then the file, then the environment, and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return AppConfig{}, err
		}
	}

	applyEnv(&cfg)
	cfg.Version = l.version

	if cfg.Store.Path == "" && cfg.Store.Backend != StoreRedis {
		cfg.Store.Path = defaultStorePath(cfg.DataDir, cfg.Store.Backend)
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return decodeStrict(data, cfg)
}

// decodeStrict rejects unknown keys so a typo never silently falls back to a default.
func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(EnvDataDir, cfg.DataDir)
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)

	cfg.Bridge.Host = ParseString(EnvBridgeHost, cfg.Bridge.Host)
	cfg.Bridge.Ports = ParsePorts(EnvPorts, cfg.Bridge.Ports)
	cfg.Bridge.ConnectTimeout = ParseDuration(EnvConnectTimeout, cfg.Bridge.ConnectTimeout)
	cfg.Bridge.RetryBackoff = ParseDuration(EnvRetryBackoff, cfg.Bridge.RetryBackoff)

	cfg.Dispatch.WaitBudget = ParseDuration(EnvWaitBudget, cfg.Dispatch.WaitBudget)

	cfg.Backend.BaseURL = ParseString(EnvBackendURL, cfg.Backend.BaseURL)
	cfg.Backend.LocalToken = ParseString(EnvLocalToken, cfg.Backend.LocalToken)

	cfg.Batch.MaxItems = ParseInt(EnvMaxItems, cfg.Batch.MaxItems)
	cfg.Batch.PageSize = ParseInt(EnvPageSize, cfg.Batch.PageSize)
	cfg.Batch.ItemDelay = ParseDuration(EnvItemDelay, cfg.Batch.ItemDelay)
	cfg.Batch.ForceRedownload = ParseBool(EnvForceRedownload, cfg.Batch.ForceRedownload)

	cfg.Store.Backend = strings.ToLower(ParseString(EnvStore, cfg.Store.Backend))
	cfg.Store.Path = ParseString(EnvStorePath, cfg.Store.Path)
	cfg.Store.RedisAddr = ParseString(EnvRedisAddr, cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = ParseString(EnvRedisPassword, cfg.Store.RedisPassword)
	cfg.Store.RedisDB = ParseInt(EnvRedisDB, cfg.Store.RedisDB)

	cfg.API.Enabled = ParseBool(EnvAPIEnabled, cfg.API.Enabled)
	cfg.API.ListenAddr = ParseString(EnvAPIListen, cfg.API.ListenAddr)
	cfg.API.RateLimit = ParseInt(EnvAPIRateLimit, cfg.API.RateLimit)

	cfg.Host.Endpoint = ParseString(EnvHostEndpoint, cfg.Host.Endpoint)

	cfg.Telemetry.Enabled = ParseBool(EnvTelemetry, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvOTLPExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvOTLPEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvSamplingRate, cfg.Telemetry.SamplingRate)
}

func defaultStorePath(dataDir, backend string) string {
	switch backend {
	case StoreSQLite:
		return filepath.Join(dataDir, "wxbridge.db")
	case StoreBadger:
		return filepath.Join(dataDir, "wxbridge.badger")
	default:
		return filepath.Join(dataDir, "wxbridge-state.json")
	}
}
