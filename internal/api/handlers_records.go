// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/solutio/internal/models"
	"github.com/tomtom215/solutio/internal/records"
)

// Records lists the locally stored records of a model.
//
// Query parameters:
//   - status: pending, synced or failed (optional)
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	model := chi.URLParam(r, "model")

	status := models.SyncStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.SyncPending, models.SyncSynced, models.SyncFailed:
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"status must be one of pending, synced, failed", nil)
		return
	}

	list, err := h.records.List(r.Context(), model, status)
	if err != nil {
		if _, known := models.NewRecord(model); known && errors.Is(err, records.ErrUnsupportedModel) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		respondStoreError(w, err)
		return
	}
	respondList(w, list, len(list), start)
}

// Record returns one locally stored record.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	rec, err := h.records.Get(r.Context(), chi.URLParam(r, "model"), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, rec, start)
}
