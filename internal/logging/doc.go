// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package logging provides centralized zerolog-based structured logging for the gateway.
//
// A global logger is configured once from main and used everywhere through
// package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("upstream", cfg.Upstream.URL).Msg("Gateway starting")
//	logging.Error().Err(err).Uint64("entry_id", id).Msg("Replay failed")
//
// Request handlers and drain passes carry request and correlation IDs in
// their context; Ctx adds them to the event:
//
//	logging.Ctx(ctx).Info().Msg("Drain pass started")
//
// The slog adapter lets sutureslog and watermill write through zerolog.
//
// # Configuration
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
//
// Always terminate event chains with Msg or Send; an unterminated chain emits nothing.
package logging
