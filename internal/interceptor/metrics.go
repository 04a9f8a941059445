// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package interceptor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes.
const (
	outcomeNetwork     = "network"
	outcomeCacheHit    = "cache_hit"
	outcomeFallback    = "cache_fallback"
	outcomeOfflinePage = "offline_page"
	outcomeNotFound    = "not_found"
	outcomeQueued      = "queued"
	outcomeRejected    = "rejected"
	outcomeError       = "error"
)

var (
	interceptorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interceptor_requests_total",
			Help: "Requests handled by the interceptor by class and outcome",
		},
		[]string{"class", "outcome"},
	)

	interceptorCacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interceptor_cache_writes_total",
			Help: "Response copies written to the durable cache",
		},
		[]string{"cache", "result"}, // result: "stored", "failed", "skipped", "uncacheable"
	)

	interceptorQueuedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interceptor_queued_writes_total",
			Help: "Writes answered offline and queued for replay",
		},
		[]string{"action", "reason"}, // reason: "network", "status"
	)

	interceptorPrecached = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interceptor_precached_total",
			Help: "Responses stored by Precache",
		},
	)
)

func countRequest(class Class, outcome string) {
	interceptorRequests.WithLabelValues(class.String(), outcome).Inc()
}
