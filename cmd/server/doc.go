// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package main is the entry point for the Solutio offline gateway.

Solutio sits between browsers and a complaint management server. While the
upstream answers, requests pass through and successful responses are cached.
While it does not, page navigations and static assets are served from cache,
API reads come from the local record store and mutations are queued in
BadgerDB for replay once connectivity returns.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("solutio")
	├── DataSupervisor ("data-layer")
	│   └── Queue compactor (synced entry retention, cache expiry, value log GC)
	├── SyncSupervisor ("sync-layer")
	│   ├── Connectivity monitor (upstream health probes)
	│   ├── Sync coordinator (queue drains on startup, reconnect, timer, request)
	│   └── Notify consumer (sync events to page toasts)
	└── APISupervisor ("api-layer")
	    ├── WebSocket hub (page notifications)
	    └── HTTP server (interceptor and /_offline control API)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Store: BadgerDB holding records, the mutation queue and cached responses
 4. Upstream client: HTTP client behind a gobreaker circuit breaker
 5. Interceptor: request classification, precache and cache activation
 6. Sync coordinator, WebSocket hub and notification center
 7. Supervisor tree and HTTP server

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	UPSTREAM_URL=http://complaints:8000   # Complaint management server (required)
	HTTP_PORT=8360                        # Gateway listen port
	STORE_PATH=/data/solutio              # BadgerDB directory
	QUEUE_MAX_RETRIES=3                   # Replay attempts before abandoning
	SYNC_INTERVAL=5m                      # Periodic drain interval
	CACHE_VERSION=v1                      # Cache generation
	LOG_LEVEL=info                        # trace, debug, info, warn, error
	LOG_FORMAT=json                       # json or console

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops every
service, the HTTP server drains in-flight requests and the store is closed
last.

# Example Usage

	export UPSTREAM_URL=http://localhost:8000
	export STORE_PATH=./data
	export LOG_FORMAT=console
	./solutio
*/
package main
