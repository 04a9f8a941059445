// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package config provides centralized configuration management for the Solutio gateway.

Configuration is layered with Koanf v2: built-in defaults, then an optional YAML
file, then environment variables. The file is looked up at $CONFIG_PATH,
./config.yaml, ./config.yml and /etc/solutio/config.yaml in that order.

# Environment Variables

Only explicitly mapped variables are read (see envMappings). The most common:

  - UPSTREAM_URL: complaint server base URL (required)
  - STORE_PATH: BadgerDB directory (default: /data/solutio)
  - QUEUE_MAX_RETRIES: replay attempts before abandonment (default: 3)
  - SYNC_INTERVAL: periodic drain interval (default: 5m)
  - CACHE_VERSION: response cache generation (default: v1)
  - HTTP_PORT: gateway listen port (default: 8360)
  - LOG_LEVEL, LOG_FORMAT: logging

Slice settings (API_PREFIXES, STATIC_PREFIXES, EXCLUDED_PREFIXES,
PRECACHE_PATHS, CORS_ORIGINS) accept comma-separated values.

# YAML Example

	upstream:
	  url: http://complaints.internal:8000
	store:
	  path: /var/lib/solutio
	queue:
	  max_retries: 5
	interceptor:
	  cache_version: v7
	  excluded_prefixes: [/admin/, /media/]
*/
package config
