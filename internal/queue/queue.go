// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/validation"
)

// Queue persists mutations in the sync_queue collection.
type Queue struct {
	store  *store.Store
	config Config
}

// New returns a Queue over st.
func New(st *store.Store, cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	return &Queue{store: st, config: cfg}, nil
}

// Config returns the queue configuration.
func (q *Queue) Config() Config {
	return q.config
}

// Enqueue validates req and persists it as a new pending entry.
func (q *Queue) Enqueue(ctx context.Context, req Request) (*Entry, error) {
	var entry *Entry
	err := q.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		entry, err = q.EnqueueTx(tx, req)
		return err
	})
	if err != nil {
		q.RecordEnqueueFailure(err)
		return nil, err
	}
	q.RecordEnqueued(entry)

	logging.Ctx(ctx).Debug().
		Int64("entry_id", entry.ID).
		Str("action", string(entry.Action)).
		Str("target_url", entry.TargetURL).
		Msg("Mutation queued")
	return entry, nil
}

// EnqueueTx is Enqueue inside the caller's transaction. The caller reports
// the outcome with RecordEnqueued or RecordEnqueueFailure once the
// transaction has committed or failed.
func (q *Queue) EnqueueTx(tx *store.Tx, req Request) (*Entry, error) {
	req.Method = strings.ToUpper(req.Method)
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr
	}

	if q.config.MaxEntries > 0 {
		n, err := tx.CountWhere(store.SyncQueue, "synced", false)
		if err != nil {
			return nil, err
		}
		if n >= q.config.MaxEntries {
			return nil, &store.QuotaExceededError{Resource: "queue", Limit: q.config.MaxEntries, Used: n}
		}
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := &Entry{
		Action:         req.Action,
		Model:          req.Model,
		SchemaVersion:  SchemaVersion,
		LocalID:        req.LocalID,
		TargetURL:      req.TargetURL,
		HTTPMethod:     req.Method,
		Headers:        req.Headers,
		Payload:        req.Body,
		Timestamp:      ts.UTC(),
		IdempotencyKey: uuid.New().String(),
		MaxRetries:     q.config.MaxRetries,
	}
	key, err := tx.Add(store.SyncQueue, entry)
	if err != nil {
		return nil, err
	}
	entry.ID = key.Int()
	return entry, nil
}

// RecordEnqueued counts an entry whose transaction committed.
func (q *Queue) RecordEnqueued(entry *Entry) {
	queueEnqueuedTotal.WithLabelValues(string(entry.Action)).Inc()
}

// RecordEnqueueFailure counts a mutation that could not be queued.
func (q *Queue) RecordEnqueueFailure(err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		queueEnqueueFailures.WithLabelValues("validation").Inc()
	case store.IsQuotaExceeded(err):
		queueEnqueueFailures.WithLabelValues("quota_exceeded").Inc()
	default:
		queueEnqueueFailures.WithLabelValues("storage").Inc()
	}
}

// Get returns the entry with id, or store.ErrNotFound.
func (q *Queue) Get(ctx context.Context, id int64) (*Entry, error) {
	var entry *Entry
	err := q.store.View(ctx, func(tx *store.Tx) error {
		var err error
		entry, err = getTx(tx, id)
		return err
	})
	return entry, err
}

func getTx(tx *store.Tx, id int64) (*Entry, error) {
	var e Entry
	found, err := tx.Get(store.SyncQueue, store.IntKey(id), &e)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("queue entry %d: %w", id, store.ErrNotFound)
	}
	return &e, nil
}

// unsynced returns every entry with synced=false, oldest first.
func unsynced(tx *store.Tx) ([]Entry, error) {
	raws, err := tx.GetAll(store.SyncQueue, store.Query{Index: "synced", Value: false})
	if err != nil {
		return nil, err
	}
	return store.DecodeAll[Entry](raws)
}

// PendingEntries returns entries eligible for replay, oldest first.
func (q *Queue) PendingEntries(ctx context.Context) ([]Entry, error) {
	all, err := store.GetAllAs[Entry](ctx, q.store, store.SyncQueue, store.Query{Index: "synced", Value: false})
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if !e.Abandoned {
			out = append(out, e)
		}
	}
	return out, nil
}

// Abandoned returns entries that reached their retry ceiling.
func (q *Queue) Abandoned(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := q.store.View(ctx, func(tx *store.Tx) error {
		all, err := unsynced(tx)
		if err != nil {
			return err
		}
		for _, e := range all {
			if e.Abandoned {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// MarkSynced records a successful replay. Marking an already synced entry
// is a no-op and returns it unchanged.
func (q *Queue) MarkSynced(ctx context.Context, id int64, serverID *int64) (*Entry, error) {
	var (
		entry   *Entry
		changed bool
	)
	err := q.store.Update(ctx, func(tx *store.Tx) error {
		e, err := getTx(tx, id)
		if err != nil {
			return err
		}
		entry = e
		if e.Synced {
			return nil
		}
		now := time.Now().UTC()
		e.Synced = true
		e.SyncedAt = &now
		e.ServerID = serverID
		changed = true
		_, err = tx.Put(store.SyncQueue, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		queueSyncedTotal.Inc()
	}
	return entry, nil
}

// RecordFailure counts a failed replay of entry id. When the retry ceiling
// is reached the entry is abandoned and a *RetryExhaustedError is returned
// together with the updated entry. Synced and abandoned entries are left
// untouched.
func (q *Queue) RecordFailure(ctx context.Context, id int64, cause error) (*Entry, error) {
	var (
		entry     *Entry
		changed   bool
		abandoned bool
	)
	err := q.store.Update(ctx, func(tx *store.Tx) error {
		e, err := getTx(tx, id)
		if err != nil {
			return err
		}
		entry = e
		if !e.Pending() {
			return nil
		}
		now := time.Now().UTC()
		e.RetryCount++
		e.LastAttemptAt = &now
		if cause != nil {
			e.LastError = cause.Error()
		}
		if e.RetryCount >= e.MaxRetries {
			e.Abandoned = true
			e.AbandonedAt = &now
			abandoned = true
		}
		changed = true
		_, err = tx.Put(store.SyncQueue, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return entry, nil
	}

	queueFailuresTotal.Inc()
	if abandoned {
		queueAbandonedTotal.Inc()
		logging.Ctx(ctx).Warn().
			Int64("entry_id", entry.ID).
			Int("retries", entry.RetryCount).
			Str("last_error", entry.LastError).
			Msg("Queue entry abandoned after max retries")
		return entry, &RetryExhaustedError{EntryID: entry.ID, Retries: entry.RetryCount}
	}
	return entry, nil
}

// Requeue returns an abandoned entry to the pending set. retry_count is
// kept; max_retries is raised by the configured ceiling.
func (q *Queue) Requeue(ctx context.Context, id int64) (*Entry, error) {
	var entry *Entry
	err := q.store.Update(ctx, func(tx *store.Tx) error {
		e, err := getTx(tx, id)
		if err != nil {
			return err
		}
		switch {
		case e.Synced:
			return fmt.Errorf("queue entry %d: %w", id, ErrAlreadySynced)
		case !e.Abandoned:
			return fmt.Errorf("queue entry %d: %w", id, ErrNotAbandoned)
		}
		e.Abandoned = false
		e.AbandonedAt = nil
		e.MaxRetries = e.RetryCount + q.config.MaxRetries
		entry = e
		_, err = tx.Put(store.SyncQueue, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	queueRequeuedTotal.Inc()
	logging.Ctx(ctx).Info().Int64("entry_id", id).Int("max_retries", entry.MaxRetries).Msg("Queue entry requeued")
	return entry, nil
}

// Discard deletes an entry regardless of state.
func (q *Queue) Discard(ctx context.Context, id int64) error {
	return q.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := getTx(tx, id); err != nil {
			return err
		}
		return tx.Delete(store.SyncQueue, store.IntKey(id))
	})
}

// Stats counts entries by state and refreshes the queue gauges.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := q.store.View(ctx, func(tx *store.Tx) error {
		all, err := unsynced(tx)
		if err != nil {
			return err
		}
		for i := range all {
			e := &all[i]
			if e.Abandoned {
				st.Abandoned++
				continue
			}
			st.Pending++
			if st.OldestPending == nil || e.Timestamp.Before(*st.OldestPending) {
				ts := e.Timestamp
				st.OldestPending = &ts
			}
		}
		st.Synced, err = tx.CountWhere(store.SyncQueue, "synced", true)
		return err
	})
	if err != nil {
		return Stats{}, err
	}
	queuePendingEntries.Set(float64(st.Pending))
	queueAbandonedEntries.Set(float64(st.Abandoned))
	return st, nil
}

// PurgeSynced deletes synced entries whose synced_at is before cutoff.
func (q *Queue) PurgeSynced(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := q.store.Update(ctx, func(tx *store.Tx) error {
		raws, err := tx.GetAll(store.SyncQueue, store.Query{Index: "synced", Value: true})
		if err != nil {
			return err
		}
		synced, err := store.DecodeAll[Entry](raws)
		if err != nil {
			return err
		}
		for _, e := range synced {
			if e.SyncedAt != nil && !e.SyncedAt.Before(cutoff) {
				continue
			}
			if err := tx.Delete(store.SyncQueue, store.IntKey(e.ID)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
