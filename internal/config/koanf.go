// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/solutio/config.yaml",
	"/etc/solutio/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8360,
			Host:            "0.0.0.0",
			Timeout:         60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Upstream: UpstreamConfig{
			URL:                     "",
			HealthPath:              "/",
			CSRFPath:                "/",
			CSRFCookie:              "csrftoken",
			CSRFHeader:              "X-CSRFToken",
			Timeout:                 30 * time.Second,
			BreakerMaxRequests:      3,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerFailureRatio:     0.6,
			BreakerMinimumRequests:  10,
			// 5xx answers still prove the upstream is reachable
			BreakerTripOnServerError: false,
		},
		Store: StoreConfig{
			Path:           "/data/solutio",
			SyncWrites:     true,
			MaxSizeBytes:   0,
			CacheTTL:       time.Hour,
			GCDiscardRatio: 0.5,
			CloseTimeout:   30 * time.Second,
		},
		Queue: QueueConfig{
			MaxRetries:      3,
			MaxEntries:      10000,
			SyncedRetention: 24 * time.Hour,
			CompactInterval: time.Hour,
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			ReplayTimeout: 30 * time.Second,
			ReplayRate:    5,
			ReplayBurst:   1,
			OnStartup:     true,
		},
		Interceptor: InterceptorConfig{
			CacheVersion:     "v1",
			APIPrefixes:      []string{"/api/"},
			StaticPrefixes:   []string{"/static/"},
			ExcludedPrefixes: []string{"/admin/", "/accounts/logout/", "/static/admin/", "/media/", "/__debug__/"},
			PrecachePaths: []string{
				"/",
				"/offline/",
				"/static/css/main.css",
				"/static/js/main.js",
				"/static/js/pwa-database.js",
				"/static/images/icons/icon-192x192.png",
				"/static/images/icons/icon-512x512.png",
				"/manifest.json",
			},
			OfflinePath:  "/offline/",
			HotCacheTTL:  30 * time.Second,
			MaxBodyBytes: 10 << 20, // 10MB
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  5 * time.Second,
		},
		Notify: NotifyConfig{
			MaxVisible:   5,
			DismissAfter: 5 * time.Second,
			DefaultTitle: "Solutio 360",
			DefaultBody:  "You have a new notification",
			Icon:         "/static/images/icons/icon-192x192.png",
			Badge:        "/static/images/icons/icon-72x72.png",
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// UPSTREAM_URL -> upstream.url
	// QUEUE_MAX_RETRIES -> queue.max_retries
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"interceptor.api_prefixes",
	"interceptor.static_prefixes",
	"interceptor.excluded_prefixes",
	"interceptor.precache_paths",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak into config.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Upstream
	"upstream_url":                 "upstream.url",
	"upstream_health_path":         "upstream.health_path",
	"upstream_csrf_path":           "upstream.csrf_path",
	"upstream_csrf_cookie":         "upstream.csrf_cookie",
	"upstream_csrf_header":         "upstream.csrf_header",
	"upstream_timeout":             "upstream.timeout",
	"breaker_max_requests":         "upstream.breaker_max_requests",
	"breaker_interval":             "upstream.breaker_interval",
	"breaker_timeout":              "upstream.breaker_timeout",
	"breaker_failure_threshold":    "upstream.breaker_failure_threshold",
	"breaker_failure_ratio":        "upstream.breaker_failure_ratio",
	"breaker_minimum_requests":     "upstream.breaker_minimum_requests",
	"breaker_trip_on_server_error": "upstream.breaker_trip_on_server_error",

	// Store
	"store_path":             "store.path",
	"store_sync_writes":      "store.sync_writes",
	"store_max_size_bytes":   "store.max_size_bytes",
	"store_cache_ttl":        "store.cache_ttl",
	"store_gc_discard_ratio": "store.gc_discard_ratio",
	"store_close_timeout":    "store.close_timeout",

	// Queue
	"queue_max_retries":      "queue.max_retries",
	"queue_max_entries":      "queue.max_entries",
	"queue_synced_retention": "queue.synced_retention",
	"queue_compact_interval": "queue.compact_interval",

	// Sync
	"sync_interval":       "sync.interval",
	"sync_replay_timeout": "sync.replay_timeout",
	"sync_replay_rate":    "sync.replay_rate",
	"sync_replay_burst":   "sync.replay_burst",
	"sync_on_startup":     "sync.on_startup",

	// Interceptor
	"cache_version":     "interceptor.cache_version",
	"api_prefixes":      "interceptor.api_prefixes",
	"static_prefixes":   "interceptor.static_prefixes",
	"excluded_prefixes": "interceptor.excluded_prefixes",
	"precache_paths":    "interceptor.precache_paths",
	"offline_path":      "interceptor.offline_path",
	"hot_cache_ttl":     "interceptor.hot_cache_ttl",
	"max_body_bytes":    "interceptor.max_body_bytes",

	// Connectivity
	"probe_interval": "connectivity.probe_interval",
	"probe_timeout":  "connectivity.probe_timeout",

	// Notify
	"notify_max_visible":   "notify.max_visible",
	"notify_dismiss_after": "notify.dismiss_after",
	"notify_default_title": "notify.default_title",
	"notify_default_body":  "notify.default_body",
	"notify_icon":          "notify.icon",
	"notify_badge":         "notify.badge",

	// Security
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - UPSTREAM_URL -> upstream.url
//   - STORE_PATH -> store.path
//   - QUEUE_MAX_RETRIES -> queue.max_retries
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
