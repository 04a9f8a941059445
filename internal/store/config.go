// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

import (
	"time"
)

// Config holds store configuration.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	Path string

	// InMemory runs BadgerDB without touching disk. Path is ignored.
	InMemory bool

	// SyncWrites forces fsync after every commit.
	SyncWrites bool

	// MaxSizeBytes caps the on-disk size (LSM + value log). 0 disables the quota.
	MaxSizeBytes int64

	// CacheTTL is the lifetime used by SetCache when the caller passes 0.
	CacheTTL time.Duration

	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration

	// ConflictRetries is how many times a transaction is retried on ErrConflict.
	ConflictRetries int

	// BadgerDB tuning
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int
	Compression      bool
}

// DefaultConfig returns a Config with durability-first defaults.
func DefaultConfig() Config {
	return Config{
		Path:             "/data/solutio",
		SyncWrites:       true,
		MaxSizeBytes:     0,
		CacheTTL:         time.Hour,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
		ConflictRetries:  3,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		Compression:      true,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return &ConfigError{Field: "Path", Message: "store path is required"}
	}
	if c.MaxSizeBytes < 0 {
		return &ConfigError{Field: "MaxSizeBytes", Message: "must not be negative"}
	}
	if c.CacheTTL <= 0 {
		return &ConfigError{Field: "CacheTTL", Message: "must be positive"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1 (exclusive)"}
	}
	if c.ConflictRetries < 0 {
		return &ConfigError{Field: "ConflictRetries", Message: "must not be negative"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "store config error: " + e.Field + ": " + e.Message
}
