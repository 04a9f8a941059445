// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package queue is the durable mutation queue: every write a page made while the
upstream was unreachable, persisted in the sync_queue collection until it is
replayed.

# Entry Lifecycle

	Enqueue ──► pending ──► MarkSynced ──► synced ──► (Compactor purges after SyncedRetention)
	               │
	               └─ RecordFailure (retry_count++) ──► retry_count ≥ max_retries ──► abandoned
	                                                                                   │
	                                                          Requeue (manual) ◄───────┘

Synced entries are never returned by PendingEntries. retry_count only grows:
Requeue raises max_retries instead of resetting the counter.

# Capacity

Config.MaxEntries caps the number of unsynced entries. Enqueue beyond the cap
fails with a *store.QuotaExceededError whose Resource is "queue".

# Usage

	q, err := queue.New(st, queue.DefaultConfig())
	entry, err := q.Enqueue(ctx, queue.Request{
	    Action:    queue.ActionCreate,
	    Model:     "complaints",
	    TargetURL: "/api/complaints/",
	    Method:    http.MethodPost,
	    Body:      body,
	})
*/
package queue
