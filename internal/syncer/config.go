// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package syncer

import (
	"fmt"
	"time"
)

// Config holds sync coordinator configuration.
type Config struct {
	// Interval between periodic drains.
	Interval time.Duration

	// ReplayTimeout bounds each replayed request.
	ReplayTimeout time.Duration

	// ReplayRate is the number of replays per second; ReplayBurst the
	// limiter burst.
	ReplayRate  float64
	ReplayBurst int

	// OnStartup runs one drain when the coordinator starts.
	OnStartup bool

	// CSRFHeader and CSRFCookie carry a fresh anti-forgery token on replay.
	CSRFHeader string
	CSRFCookie string

	// MaxResponseBytes caps how much of a replay response is read to find
	// the server-assigned id.
	MaxResponseBytes int64
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Minute,
		ReplayTimeout:    30 * time.Second,
		ReplayRate:       5,
		ReplayBurst:      1,
		OnStartup:        true,
		CSRFHeader:       "X-CSRFToken",
		CSRFCookie:       "csrftoken",
		MaxResponseBytes: 1 << 20,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Interval < time.Second {
		return &ConfigError{Field: "Interval", Message: "must be at least 1 second"}
	}
	if c.ReplayTimeout <= 0 {
		return &ConfigError{Field: "ReplayTimeout", Message: "must be positive"}
	}
	if c.ReplayRate <= 0 {
		return &ConfigError{Field: "ReplayRate", Message: "must be positive"}
	}
	if c.ReplayBurst < 1 {
		return &ConfigError{Field: "ReplayBurst", Message: "must be at least 1"}
	}
	if c.MaxResponseBytes <= 0 {
		return &ConfigError{Field: "MaxResponseBytes", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sync config error: %s: %s", e.Field, e.Message)
}
