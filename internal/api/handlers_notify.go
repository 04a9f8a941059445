// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/solutio/internal/logging"
)

// maxPushBytes caps push payloads; browsers cap theirs at 4KB.
const maxPushBytes = 64 << 10

// Notifications lists the visible notifications, oldest first.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	active := h.notify.Active()
	respondList(w, active, len(active), start)
}

// DismissNotification removes a visible notification.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	if !h.notify.Dismiss(id) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "notification not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"dismissed": id}, start)
}

// Push shows an upstream push payload as a system notification on every
// connected page.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "push payload too large", nil)
		return
	}

	if err := h.notify.Push(body); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	respondSuccess(w, http.StatusAccepted, map[string]int{"clients": h.hub.GetClientCount()}, start)
}

// ClearCache drops every cached upstream response. The precached asset set
// is fetched again on the next activation.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n, err := h.interceptor.ClearCaches(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	logging.Ctx(r.Context()).Info().Int("deleted", n).Msg("Response caches cleared")
	respondSuccess(w, http.StatusOK, map[string]int{"deleted": n}, start)
}
