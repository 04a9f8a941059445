// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package middleware provides HTTP middleware shared by the control API and
the proxied traffic.

  - RequestID: X-Request-ID propagation and logging context
  - PrometheusMetrics: request count, latency and in-flight gauge
  - PerformanceMonitor: sliding-window latency percentiles per route
  - Compression: gzip for control API responses

Metrics and samples are labelled by chi route pattern; everything the
control router did not match is labelled "proxy".

Usage:

	perf := middleware.NewPerformanceMonitor(1000, time.Second)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)
*/
package middleware
