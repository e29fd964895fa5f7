// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Store backends accepted by StoreConfig.Backend.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreRedis  = "redis"
)

// AppConfig is the fully resolved runtime configuration.
// The same struct doubles as the YAML schema; decoding a file on top of the
// defaults keeps every field the file does not mention.
type AppConfig struct {
	Version  string `yaml:"-"`
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Bridge    BridgeConfig    `yaml:"bridge"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Backend   BackendConfig   `yaml:"backend"`
	Batch     BatchConfig     `yaml:"batch"`
	Store     StoreConfig     `yaml:"store"`
	API       APIConfig       `yaml:"api"`
	Host      HostConfig      `yaml:"host"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BridgeConfig controls port discovery and the WebSocket channel.
type BridgeConfig struct {
	Host           string        `yaml:"host"`
	Path           string        `yaml:"path"`
	Ports          []int         `yaml:"ports"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	RetryBackoff   time.Duration `yaml:"retryBackoff"`
	ReadLimit      int64         `yaml:"readLimit"`
}

// DispatchConfig bounds the wait for host capabilities.
type DispatchConfig struct {
	WaitBudget   time.Duration `yaml:"waitBudget"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// BackendConfig addresses the backend's HTTP surface. An empty BaseURL means
// "same host and port as the WebSocket the bridge connected to".
type BackendConfig struct {
	BaseURL    string        `yaml:"baseURL,omitempty"`
	LocalToken string        `yaml:"localToken,omitempty"`
	Timeout    time.Duration `yaml:"timeout"`
}

// BatchConfig holds catalog limits and download pacing.
type BatchConfig struct {
	MaxItems        int           `yaml:"maxItems"`
	PageSize        int           `yaml:"pageSize"`
	ItemDelay       time.Duration `yaml:"itemDelay"`
	ForceRedownload bool          `yaml:"forceRedownload"`
}

// StoreConfig selects where client-side state (the last successful port) lives.
type StoreConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path,omitempty"`
	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       int    `yaml:"redisDB,omitempty"`
}

// APIConfig configures the local control API.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// HostConfig points at an optional HTTP relay exposing the host page's capabilities.
type HostConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the configuration used when neither file nor environment set a value.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  ".",
		LogLevel: "info",
		Bridge: BridgeConfig{
			Host:           "127.0.0.1",
			Path:           "/ws/api",
			Ports:          []int{2026, 9527, 8081, 3001},
			ConnectTimeout: 5 * time.Second,
			RetryBackoff:   3 * time.Second,
			ReadLimit:      10 << 20,
		},
		Dispatch: DispatchConfig{
			WaitBudget:   10 * time.Second,
			PollInterval: 500 * time.Millisecond,
		},
		Backend: BackendConfig{
			Timeout: 0,
		},
		Batch: BatchConfig{
			MaxItems:  100000,
			PageSize:  50,
			ItemDelay: 300 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend: StoreFile,
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:2027",
			RateLimit:  600,
		},
		Host: HostConfig{
			Timeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "http",
			SamplingRate: 1.0,
		},
	}
}
