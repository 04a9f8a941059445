// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all gateway configuration loaded from defaults, an optional
// YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Upstream: the complaint management server the gateway fronts
//  2. Offline data: Store (BadgerDB), Queue (mutation queue), Sync (replay)
//  3. Request handling: Server, Interceptor, Security
//  4. Page feedback: Notify, Connectivity
//  5. Observability: Logging
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//	st, err := store.Open(storeConfig(cfg.Store))
//
// Config is immutable after loading and safe for concurrent reads.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Upstream     UpstreamConfig     `koanf:"upstream"`
	Store        StoreConfig        `koanf:"store"`
	Queue        QueueConfig        `koanf:"queue"`
	Sync         SyncConfig         `koanf:"sync"`
	Interceptor  InterceptorConfig  `koanf:"interceptor"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	Notify       NotifyConfig       `koanf:"notify"`
	Security     SecurityConfig     `koanf:"security"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig holds the gateway's own HTTP listener settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8360)
//   - HTTP_TIMEOUT: Read/write timeout (default: 60s)
//   - SHUTDOWN_TIMEOUT: Graceful shutdown timeout (default: 10s)
//   - ENVIRONMENT: development or production
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// UpstreamConfig describes the complaint management server.
//
// Environment Variables:
//   - UPSTREAM_URL: Base URL (required)
//   - UPSTREAM_HEALTH_PATH: Path probed by the connectivity monitor (default: /)
//   - UPSTREAM_CSRF_PATH: Path fetched to obtain a fresh anti-forgery cookie (default: /)
//   - UPSTREAM_CSRF_COOKIE: Cookie carrying the token (default: csrftoken)
//   - UPSTREAM_CSRF_HEADER: Header the token is replayed in (default: X-CSRFToken)
//   - UPSTREAM_TIMEOUT: Per-request timeout for proxied calls (default: 30s)
//   - BREAKER_FAILURE_THRESHOLD: Consecutive failures that open the breaker (default: 5)
//   - BREAKER_TIMEOUT: Time the breaker stays open (default: 30s)
type UpstreamConfig struct {
	URL        string        `koanf:"url"`
	HealthPath string        `koanf:"health_path"`
	CSRFPath   string        `koanf:"csrf_path"`
	CSRFCookie string        `koanf:"csrf_cookie"`
	CSRFHeader string        `koanf:"csrf_header"`
	Timeout    time.Duration `koanf:"timeout"`

	BreakerMaxRequests       uint32        `koanf:"breaker_max_requests"`
	BreakerInterval          time.Duration `koanf:"breaker_interval"`
	BreakerTimeout           time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold  uint32        `koanf:"breaker_failure_threshold"`
	BreakerFailureRatio      float64       `koanf:"breaker_failure_ratio"`
	BreakerMinimumRequests   uint32        `koanf:"breaker_minimum_requests"`
	BreakerTripOnServerError bool          `koanf:"breaker_trip_on_server_error"`
}

// HealthURL returns the absolute URL probed by the connectivity monitor.
func (u UpstreamConfig) HealthURL() string {
	return joinURL(u.URL, u.HealthPath)
}

// CSRFURL returns the absolute URL fetched for a fresh anti-forgery token.
func (u UpstreamConfig) CSRFURL() string {
	return joinURL(u.URL, u.CSRFPath)
}

func joinURL(base, path string) string {
	if path == "" {
		path = "/"
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// StoreConfig configures the BadgerDB store.
//
// Environment Variables:
//   - STORE_PATH: Data directory (default: /data/solutio)
//   - STORE_SYNC_WRITES: fsync every commit (default: true)
//   - STORE_MAX_SIZE_BYTES: On-disk quota, 0 disables (default: 0)
//   - STORE_CACHE_TTL: Default cache entry lifetime (default: 1h)
//   - STORE_GC_DISCARD_RATIO: Value log GC discard ratio (default: 0.5)
type StoreConfig struct {
	Path           string        `koanf:"path"`
	SyncWrites     bool          `koanf:"sync_writes"`
	MaxSizeBytes   int64         `koanf:"max_size_bytes"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
}

// QueueConfig configures the mutation queue.
//
// Environment Variables:
//   - QUEUE_MAX_RETRIES: Replay attempts before an entry is abandoned (default: 3)
//   - QUEUE_MAX_ENTRIES: Unsynced entries allowed before enqueue fails (default: 10000)
//   - QUEUE_SYNCED_RETENTION: How long synced entries are kept (default: 24h)
//   - QUEUE_COMPACT_INTERVAL: Compactor run interval (default: 1h)
type QueueConfig struct {
	MaxRetries      int           `koanf:"max_retries"`
	MaxEntries      int           `koanf:"max_entries"`
	SyncedRetention time.Duration `koanf:"synced_retention"`
	CompactInterval time.Duration `koanf:"compact_interval"`
}

// SyncConfig configures the sync coordinator.
//
// Environment Variables:
//   - SYNC_INTERVAL: Periodic drain interval (default: 5m)
//   - SYNC_REPLAY_TIMEOUT: Per-replay deadline (default: 30s)
//   - SYNC_REPLAY_RATE: Replays per second (default: 5)
//   - SYNC_ON_STARTUP: Drain once at startup (default: true)
type SyncConfig struct {
	Interval      time.Duration `koanf:"interval"`
	ReplayTimeout time.Duration `koanf:"replay_timeout"`
	ReplayRate    float64       `koanf:"replay_rate"`
	ReplayBurst   int           `koanf:"replay_burst"`
	OnStartup     bool          `koanf:"on_startup"`
}

// InterceptorConfig configures request classification and response caching.
//
// Environment Variables:
//   - CACHE_VERSION: Cache generation; changing it prunes old caches (default: v1)
//   - API_PREFIXES, STATIC_PREFIXES, EXCLUDED_PREFIXES, PRECACHE_PATHS: comma-separated
//   - OFFLINE_PATH: Offline fallback page (default: /offline/)
//   - HOT_CACHE_TTL: In-memory response cache lifetime (default: 30s)
type InterceptorConfig struct {
	CacheVersion     string        `koanf:"cache_version"`
	APIPrefixes      []string      `koanf:"api_prefixes"`
	StaticPrefixes   []string      `koanf:"static_prefixes"`
	ExcludedPrefixes []string      `koanf:"excluded_prefixes"`
	PrecachePaths    []string      `koanf:"precache_paths"`
	OfflinePath      string        `koanf:"offline_path"`
	HotCacheTTL      time.Duration `koanf:"hot_cache_ttl"`
	MaxBodyBytes     int64         `koanf:"max_body_bytes"`
}

// ConnectivityConfig configures the upstream prober.
//
// Environment Variables:
//   - PROBE_INTERVAL: Health probe interval (default: 15s)
//   - PROBE_TIMEOUT: Health probe timeout (default: 5s)
type ConnectivityConfig struct {
	ProbeInterval time.Duration `koanf:"probe_interval"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout"`
}

// NotifyConfig configures the notification surface.
type NotifyConfig struct {
	MaxVisible   int           `koanf:"max_visible"`
	DismissAfter time.Duration `koanf:"dismiss_after"`
	DefaultTitle string        `koanf:"default_title"`
	DefaultBody  string        `koanf:"default_body"`
	Icon         string        `koanf:"icon"`
	Badge        string        `koanf:"badge"`
}

// SecurityConfig holds control API protection settings.
//
// Environment Variables:
//   - RATE_LIMIT_REQUESTS: Requests per window per IP (default: 100)
//   - RATE_LIMIT_WINDOW: Window length (default: 1m)
//   - DISABLE_RATE_LIMIT: Disable limiting (default: false)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
