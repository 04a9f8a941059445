// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/syncer"
)

// EntryView is a queue entry as shown to pages. Stored headers can carry
// session cookies, so they and the raw payload are left out.
type EntryView struct {
	ID            int64        `json:"id"`
	Action        queue.Action `json:"action"`
	Model         string       `json:"model,omitempty"`
	LocalID       int64        `json:"local_id,omitempty"`
	TargetURL     string       `json:"target_url"`
	HTTPMethod    string       `json:"http_method"`
	PayloadBytes  int          `json:"payload_bytes"`
	Timestamp     time.Time    `json:"timestamp"`
	RetryCount    int          `json:"retry_count"`
	MaxRetries    int          `json:"max_retries"`
	Abandoned     bool         `json:"abandoned"`
	AbandonedAt   *time.Time   `json:"abandoned_at,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	LastAttemptAt *time.Time   `json:"last_attempt_at,omitempty"`
}

func newEntryView(e *queue.Entry) EntryView {
	return EntryView{
		ID:            e.ID,
		Action:        e.Action,
		Model:         e.Model,
		LocalID:       e.LocalID,
		TargetURL:     e.TargetURL,
		HTTPMethod:    e.HTTPMethod,
		PayloadBytes:  len(e.Payload),
		Timestamp:     e.Timestamp,
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		Abandoned:     e.Abandoned,
		AbandonedAt:   e.AbandonedAt,
		LastError:     e.LastError,
		LastAttemptAt: e.LastAttemptAt,
	}
}

func entryViews(entries []queue.Entry) []EntryView {
	out := make([]EntryView, 0, len(entries))
	for i := range entries {
		out = append(out, newEntryView(&entries[i]))
	}
	return out
}

// Sync runs a manual drain pass and returns its result. With ?async=true the
// pass is only scheduled and 202 is returned immediately.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if getBoolParam(r, "async") {
		h.syncer.Trigger(syncer.TriggerManual)
		respondSuccess(w, http.StatusAccepted, map[string]bool{"scheduled": true}, start)
		return
	}

	res, err := h.syncer.Drain(r.Context(), syncer.TriggerManual)
	if errors.Is(err, syncer.ErrDrainInProgress) {
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "A drain pass is already running", nil)
		return
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, res, start)
}

// Queue lists pending entries, oldest first.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	entries, err := h.queue.PendingEntries(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondList(w, entryViews(entries), len(entries), start)
}

// Abandoned lists entries that exhausted their retries.
func (h *Handler) Abandoned(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	entries, err := h.queue.Abandoned(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondList(w, entryViews(entries), len(entries), start)
}

// Retry makes an abandoned entry pending again and schedules a drain.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	entry, err := h.queue.Requeue(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	h.syncer.Trigger(syncer.TriggerManual)
	respondSuccess(w, http.StatusOK, newEntryView(entry), start)
}

// Discard removes an entry from the queue.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := h.queue.Discard(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("entry_id", id).Msg("Queue entry discarded")
	respondSuccess(w, http.StatusOK, map[string]int64{"discarded": id}, start)
}
