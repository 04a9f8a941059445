// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncDrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_drains_total",
			Help: "Drain passes by trigger and result",
		},
		[]string{"trigger", "result"}, // result: "completed", "skipped", "error"
	)

	syncDrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_drain_duration_seconds",
			Help:    "Duration of drain passes in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	syncReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_replays_total",
			Help: "Replayed queue entries by outcome",
		},
		[]string{"outcome"}, // "synced", "failed", "abandoned", "rejected"
	)

	syncReplayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_replay_duration_seconds",
			Help:    "Duration of single replays in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	syncLastDrain = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_drain_timestamp_seconds",
			Help: "Unix time the last drain pass finished",
		},
	)

	syncTokenFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_csrf_token_fetches_total",
			Help: "Anti-forgery token fetches by result",
		},
		[]string{"result"}, // "cached", "fetched", "error"
	)
)
