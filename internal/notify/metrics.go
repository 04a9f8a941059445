// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_notifications_total",
			Help: "Toasts raised by kind",
		},
		[]string{"kind"},
	)

	notificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_notifications_dropped_total",
			Help: "Toasts dropped because the visible queue was full",
		},
	)

	pageMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_page_messages_total",
			Help: "Messages sent to connected pages by type",
		},
		[]string{"type"},
	)
)
