// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package notify

import (
	"fmt"
	"time"
)

// Config configures the notification surface.
type Config struct {
	// MaxVisible bounds the toast queue; the oldest toast is dropped first.
	MaxVisible int

	// DismissAfter is the fixed auto-dismiss timeout.
	DismissAfter time.Duration

	// Defaults for pushed system notifications.
	DefaultTitle string
	DefaultBody  string
	Icon         string
	Badge        string
	Vibrate      []int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxVisible:   5,
		DismissAfter: 5 * time.Second,
		DefaultTitle: "Solutio 360",
		DefaultBody:  "You have a new notification",
		Icon:         "/static/images/icons/icon-192x192.png",
		Badge:        "/static/images/icons/icon-72x72.png",
		Vibrate:      []int{100, 50, 100},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxVisible < 1 {
		return &ConfigError{Field: "MaxVisible", Message: "must be at least 1"}
	}
	if c.DismissAfter <= 0 {
		return &ConfigError{Field: "DismissAfter", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("notify config error: %s %s", e.Field, e.Message)
}
