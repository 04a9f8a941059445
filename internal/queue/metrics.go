// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the mutation queue
var (
	queueEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_enqueued_total",
		Help: "Total number of mutations written to the queue",
	}, []string{"action"})

	queueEnqueueFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_enqueue_failures_total",
		Help: "Total number of mutations that could not be queued",
	}, []string{"reason"})

	queueSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_synced_total",
		Help: "Total number of entries marked synced",
	})

	queueFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_replay_failures_total",
		Help: "Total number of recorded replay failures",
	})

	queueAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_abandoned_total",
		Help: "Total number of entries abandoned after reaching max retries",
	})

	queueRequeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_requeued_total",
		Help: "Total number of abandoned entries requeued manually",
	})

	queuePendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "queue_pending_entries",
		Help: "Current number of entries waiting to be replayed",
	})

	queueAbandonedEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "queue_abandoned_entries",
		Help: "Current number of abandoned entries awaiting manual intervention",
	})

	queueCompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_compactions_total",
		Help: "Total number of queue compaction runs",
	})

	queueEntriesCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_entries_compacted_total",
		Help: "Total number of synced entries removed during compaction",
	})

	queueCompactionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_compaction_duration_seconds",
		Help:    "Queue compaction duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
