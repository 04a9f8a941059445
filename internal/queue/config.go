// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package queue

import (
	"time"
)

// Config holds mutation queue configuration.
type Config struct {
	// MaxRetries is the replay ceiling stamped on new entries.
	MaxRetries int

	// MaxEntries caps unsynced entries. 0 disables the cap.
	MaxEntries int64

	// SyncedRetention is how long synced entries are kept for inspection
	// before the compactor removes them.
	SyncedRetention time.Duration

	// CompactInterval is the time between compaction runs.
	CompactInterval time.Duration
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		MaxEntries:      10000,
		SyncedRetention: 24 * time.Hour,
		CompactInterval: time.Hour,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxRetries < 1 {
		return &ConfigError{Field: "MaxRetries", Message: "must be at least 1"}
	}
	if c.MaxEntries < 0 {
		return &ConfigError{Field: "MaxEntries", Message: "must not be negative"}
	}
	if c.SyncedRetention < 0 {
		return &ConfigError{Field: "SyncedRetention", Message: "must not be negative"}
	}
	if c.CompactInterval < time.Minute {
		return &ConfigError{Field: "CompactInterval", Message: "must be at least 1 minute"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "queue config error: " + e.Field + ": " + e.Message
}
