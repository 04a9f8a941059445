// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package interceptor

import (
	"fmt"
	"strings"
	"time"
)

// Config holds interceptor configuration.
type Config struct {
	// CacheVersion names the current cache generation. Caches of any other
	// generation are pruned by Activate.
	CacheVersion string

	APIPrefixes      []string
	StaticPrefixes   []string
	ExcludedPrefixes []string

	// PrecachePaths are fetched into the static cache by Precache.
	PrecachePaths []string

	// OfflinePath is served from cache when a page navigation fails.
	OfflinePath string

	// StaticTTL bounds how long static copies live. DynamicTTL of zero uses
	// the store default.
	StaticTTL  time.Duration
	DynamicTTL time.Duration

	// HotCacheTTL is the lifetime of in-memory copies of dynamic responses.
	HotCacheTTL time.Duration

	// MaxBodyBytes caps request bodies accepted for queueing and response
	// bodies copied into a cache.
	MaxBodyBytes int64
}

// DefaultConfig returns the default interceptor configuration.
func DefaultConfig() Config {
	return Config{
		CacheVersion:     "v1",
		APIPrefixes:      []string{"/api/"},
		StaticPrefixes:   []string{"/static/"},
		ExcludedPrefixes: []string{"/admin/", "/accounts/logout/", "/static/admin/", "/media/", "/__debug__/"},
		PrecachePaths:    []string{"/", "/offline/"},
		OfflinePath:      "/offline/",
		StaticTTL:        30 * 24 * time.Hour,
		HotCacheTTL:      30 * time.Second,
		MaxBodyBytes:     10 << 20,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.CacheVersion == "" || strings.Contains(c.CacheVersion, "|") {
		return &ConfigError{Field: "CacheVersion", Message: "must be non-empty and must not contain '|'"}
	}
	if len(c.APIPrefixes) == 0 {
		return &ConfigError{Field: "APIPrefixes", Message: "at least one prefix is required"}
	}
	for _, prefixes := range [][]string{c.APIPrefixes, c.StaticPrefixes, c.ExcludedPrefixes, c.PrecachePaths} {
		for _, p := range prefixes {
			if !strings.HasPrefix(p, "/") {
				return &ConfigError{Field: "prefixes", Message: fmt.Sprintf("%q must start with '/'", p)}
			}
		}
	}
	if c.StaticTTL <= 0 {
		return &ConfigError{Field: "StaticTTL", Message: "must be positive"}
	}
	if c.DynamicTTL < 0 {
		return &ConfigError{Field: "DynamicTTL", Message: "must not be negative"}
	}
	if c.HotCacheTTL < 0 {
		return &ConfigError{Field: "HotCacheTTL", Message: "must not be negative"}
	}
	if c.MaxBodyBytes <= 0 {
		return &ConfigError{Field: "MaxBodyBytes", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("interceptor config error: %s: %s", e.Field, e.Message)
}

// staticCache and dynamicCache name the current cache generations.
func (c *Config) staticCache() string  { return "static-" + c.CacheVersion }
func (c *Config) dynamicCache() string { return "dynamic-" + c.CacheVersion }
