// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/solutio/internal/metrics"
)

// PrometheusMetrics records request count, latency and in-flight requests,
// labelled by route pattern.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		wrapper := newStatusWriter(w)
		next.ServeHTTP(wrapper, r)

		metrics.RecordAPIRequest(
			r.Method,
			RouteLabel(r),
			strconv.Itoa(wrapper.statusCode),
			time.Since(start),
		)
	})
}
