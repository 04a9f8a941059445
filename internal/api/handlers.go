// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/solutio/internal/config"
	"github.com/tomtom215/solutio/internal/connectivity"
	"github.com/tomtom215/solutio/internal/interceptor"
	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/middleware"
	"github.com/tomtom215/solutio/internal/notify"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/records"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/syncer"
	"github.com/tomtom215/solutio/internal/upstream"
	ws "github.com/tomtom215/solutio/internal/websocket"
)

// Deps are the components the control API reads and drives.
type Deps struct {
	Config      *config.Config
	Version     string
	Store       *store.Store
	Queue       *queue.Queue
	Compactor   *queue.Compactor
	Records     *records.Service
	Syncer      *syncer.Coordinator
	Monitor     *connectivity.Monitor
	Client      *upstream.Client
	Interceptor *interceptor.Interceptor
	Notify      *notify.Center
	Hub         *ws.Hub
	Perf        *middleware.PerformanceMonitor
}

// Handler serves the /_offline/ control endpoints.
type Handler struct {
	config      *config.Config
	version     string
	store       *store.Store
	queue       *queue.Queue
	compactor   *queue.Compactor
	records     *records.Service
	syncer      *syncer.Coordinator
	monitor     *connectivity.Monitor
	client      *upstream.Client
	interceptor *interceptor.Interceptor
	notify      *notify.Center
	hub         *ws.Hub
	perf        *middleware.PerformanceMonitor
	startTime   time.Time
	upgrader    websocket.Upgrader
}

// NewHandler creates a Handler over d.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		config:      d.Config,
		version:     d.Version,
		store:       d.Store,
		queue:       d.Queue,
		compactor:   d.Compactor,
		records:     d.Records,
		syncer:      d.Syncer,
		monitor:     d.Monitor,
		client:      d.Client,
		interceptor: d.Interceptor,
		notify:      d.Notify,
		hub:         d.Hub,
		perf:        d.Perf,
		startTime:   time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
	return h
}

// checkWebSocketOrigin accepts same-origin pages and the configured CORS
// origins. Requests without an Origin header are rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().
			Str("remote_addr", sanitizeLogValue(r.RemoteAddr)).
			Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	logging.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades the connection and attaches it to the page channel hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	if !h.hub.Attach(conn) {
		logging.Ctx(r.Context()).Debug().Msg("WebSocket hub stopped, connection closed")
	}
}
