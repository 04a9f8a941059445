// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/solutio/internal/connectivity"
	"github.com/tomtom215/solutio/internal/interceptor"
	"github.com/tomtom215/solutio/internal/metrics"
	"github.com/tomtom215/solutio/internal/middleware"
	"github.com/tomtom215/solutio/internal/notify"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/syncer"
)

// HealthStatus is the body of GET /_offline/health.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	Online        bool    `json:"online"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// GatewayStatus is the body of GET /_offline/status.
type GatewayStatus struct {
	Online       bool                `json:"online"`
	Connectivity connectivity.Status `json:"connectivity"`
	Queue        queue.Stats         `json:"queue"`
	Syncing      bool                `json:"syncing"`
	LastDrain    *syncer.Result      `json:"last_drain,omitempty"`
	Breaker      string              `json:"breaker"`
	Clients      int                 `json:"clients"`
}

// GatewayStats is the body of GET /_offline/stats.
type GatewayStats struct {
	Store      store.Stats               `json:"store"`
	Queue      queue.Stats               `json:"queue"`
	Compaction *queue.CompactorStats     `json:"last_compaction,omitempty"`
	HotCache   interceptor.HotCacheStats `json:"hot_cache"`
	Routes     []middleware.RouteStats   `json:"routes"`
	Drain      *syncer.Result            `json:"last_drain,omitempty"`
}

// Health reports liveness. It never touches the store so it stays cheap
// enough for container probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uptime := time.Since(h.startTime).Seconds()
	metrics.AppUptime.Set(uptime)
	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:        "healthy",
		Version:       h.version,
		Online:        h.monitor.Online(),
		UptimeSeconds: uptime,
	}, start)
}

// Status reports connectivity, queue depth and the last drain pass.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	qs, err := h.queue.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	conn := h.monitor.Status()
	respondSuccess(w, http.StatusOK, GatewayStatus{
		Online:       conn.Online,
		Connectivity: conn,
		Queue:        qs,
		Syncing:      h.syncer.InProgress(),
		LastDrain:    h.syncer.LastResult(),
		Breaker:      h.client.State(),
		Clients:      h.hub.GetClientCount(),
	}, start)
}

// Stats reports store sizes, queue counts, cache hit rates and per-route
// latency.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ss, err := h.store.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	qs, err := h.queue.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	out := GatewayStats{
		Store:    ss,
		Queue:    qs,
		HotCache: h.interceptor.HotCacheStats(),
		Drain:    h.syncer.LastResult(),
	}
	if h.compactor != nil {
		if cs := h.compactor.GetStats(); !cs.LastRun.IsZero() {
			out.Compaction = &cs
		}
	}
	if h.perf != nil {
		out.Routes = h.perf.GetStats()
	}
	respondSuccess(w, http.StatusOK, out, start)
}

// SyncStatus builds the SYNC_STATUS snapshot pushed to pages.
func (h *Handler) SyncStatus(ctx context.Context) (notify.SyncStatusMessage, error) {
	qs, err := h.queue.Stats(ctx)
	if err != nil {
		return notify.SyncStatusMessage{}, err
	}
	msg := notify.SyncStatusMessage{
		Online:    h.monitor.Online(),
		Pending:   qs.Pending,
		Abandoned: qs.Abandoned,
		Syncing:   h.syncer.InProgress(),
	}
	if last := h.syncer.LastResult(); last != nil {
		finished := last.FinishedAt
		msg.LastSync = &finished
	}
	return msg, nil
}
