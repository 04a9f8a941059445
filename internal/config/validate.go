// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateInterceptor(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateUpstream() error {
	if c.Upstream.URL == "" {
		return fmt.Errorf("UPSTREAM_URL is required")
	}
	if err := validateHTTPURL(c.Upstream.URL, "UPSTREAM_URL"); err != nil {
		return err
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if c.Upstream.CSRFHeader == "" {
		return fmt.Errorf("UPSTREAM_CSRF_HEADER must not be empty")
	}
	if c.Upstream.BreakerFailureRatio < 0 || c.Upstream.BreakerFailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	if c.Store.MaxSizeBytes < 0 {
		return fmt.Errorf("STORE_MAX_SIZE_BYTES must not be negative")
	}
	if c.Store.CacheTTL <= 0 {
		return fmt.Errorf("STORE_CACHE_TTL must be positive")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("STORE_GC_DISCARD_RATIO must be between 0 and 1 (exclusive)")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxRetries < 1 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must be at least 1")
	}
	if c.Queue.MaxEntries < 1 {
		return fmt.Errorf("QUEUE_MAX_ENTRIES must be at least 1")
	}
	if c.Queue.SyncedRetention < 0 {
		return fmt.Errorf("QUEUE_SYNCED_RETENTION must not be negative")
	}
	if c.Queue.CompactInterval < time.Minute {
		return fmt.Errorf("QUEUE_COMPACT_INTERVAL must be at least 1m")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1s")
	}
	if c.Sync.ReplayTimeout <= 0 {
		return fmt.Errorf("SYNC_REPLAY_TIMEOUT must be positive")
	}
	if c.Sync.ReplayRate <= 0 {
		return fmt.Errorf("SYNC_REPLAY_RATE must be positive")
	}
	if c.Sync.ReplayBurst < 1 {
		return fmt.Errorf("SYNC_REPLAY_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validateInterceptor() error {
	if c.Interceptor.CacheVersion == "" {
		return fmt.Errorf("CACHE_VERSION must not be empty")
	}
	if len(c.Interceptor.APIPrefixes) == 0 {
		return fmt.Errorf("API_PREFIXES must list at least one prefix")
	}
	for _, list := range [][]string{
		c.Interceptor.APIPrefixes,
		c.Interceptor.StaticPrefixes,
		c.Interceptor.ExcludedPrefixes,
		c.Interceptor.PrecachePaths,
	} {
		for _, p := range list {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("path %q must start with /", p)
			}
		}
	}
	if c.Interceptor.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if c.Connectivity.ProbeInterval < time.Second {
		return fmt.Errorf("PROBE_INTERVAL must be at least 1s")
	}
	if c.Connectivity.ProbeTimeout <= 0 || c.Connectivity.ProbeTimeout > c.Connectivity.ProbeInterval {
		return fmt.Errorf("PROBE_TIMEOUT must be positive and not exceed PROBE_INTERVAL")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.MaxVisible < 1 {
		return fmt.Errorf("NOTIFY_MAX_VISIBLE must be at least 1")
	}
	if c.Notify.DismissAfter <= 0 {
		return fmt.Errorf("NOTIFY_DISMISS_AFTER must be positive")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// validateHTTPURL validates that a URL is an absolute http(s) base URL.
// A path is allowed since the upstream may be mounted under a prefix; a query is not.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}
