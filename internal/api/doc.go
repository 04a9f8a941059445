// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package api exposes the gateway over HTTP.

Every path under /_offline/ belongs to the control API; every other path is
handed to the fetch interceptor, which proxies it to the upstream complaint
server (or answers from the durable store when the upstream is unreachable).

Control endpoints:

	GET    /_offline/health                 liveness and connectivity
	GET    /_offline/status                 queue stats, last drain, breaker state
	POST   /_offline/sync                   manual drain (?async=true to only schedule)
	GET    /_offline/queue                  pending entries, oldest first
	GET    /_offline/queue/abandoned        entries that exhausted their retries
	POST   /_offline/queue/{id}/retry       requeue an abandoned entry
	DELETE /_offline/queue/{id}             discard an entry
	GET    /_offline/records/{model}        offline records (?status=pending|synced|failed)
	GET    /_offline/records/{model}/{id}   one record
	GET    /_offline/notifications          visible notifications
	DELETE /_offline/notifications/{id}     dismiss a notification
	DELETE /_offline/cache                  drop every cached response
	GET    /_offline/stats                  store, queue and route statistics
	POST   /_offline/push                   show an upstream push notification
	GET    /_offline/ws                     page channel (WebSocket)
	GET    /metrics                         Prometheus metrics

Responses use the models.APIResponse envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
	{"status": "error", "error": {"code": "NOT_FOUND", "message": "..."}, "metadata": {...}}
*/
package api
