// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/solutio/internal/middleware"
)

// ControlPrefix is the path prefix reserved for the control API.
const ControlPrefix = "/_offline"

// Router wires the control API and the interceptor into one handler.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	proxy         http.Handler
}

// NewRouter creates a Router. Paths outside ControlPrefix and /metrics go
// to the handler's interceptor.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		proxy:         handler.interceptor,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	if router.handler.perf != nil {
		r.Use(router.handler.perf.Middleware)
	}

	// ========================
	// Control API
	// ========================
	r.Route(ControlPrefix, func(r chi.Router) {
		r.Use(router.chiMiddleware.CORS())
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compression)

			r.Get("/health", router.handler.Health)
			r.Get("/status", router.handler.Status)
			r.Get("/stats", router.handler.Stats)

			r.With(router.chiMiddleware.RateLimitSync()).Post("/sync", router.handler.Sync)

			r.Get("/queue", router.handler.Queue)
			r.Get("/queue/abandoned", router.handler.Abandoned)
			r.Post("/queue/{id}/retry", router.handler.Retry)
			r.Delete("/queue/{id}", router.handler.Discard)

			r.Get("/records/{model}", router.handler.Records)
			r.Get("/records/{model}/{id}", router.handler.Record)

			r.Get("/notifications", router.handler.Notifications)
			r.Delete("/notifications/{id}", router.handler.DismissNotification)
			r.With(router.chiMiddleware.RateLimitPush()).Post("/push", router.handler.Push)

			r.Delete("/cache", router.handler.ClearCache)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown control endpoint", nil)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Upstream
	// ========================
	// Everything else is the complaint server's, seen through the interceptor.
	r.NotFound(router.proxy.ServeHTTP)

	return r
}
