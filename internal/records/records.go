// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package records keeps the local copies of entities created offline and
// reconciles them with the upstream once their originating mutation syncs.
//
// A record created offline and its CREATE queue entry are written in one
// transaction and linked by the entry's local_id. On sync the record moves
// from its local id to the id the upstream assigned.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/models"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/validation"
)

var (
	// ErrUnsupportedModel is returned for a model that cannot be stored locally.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrInvalidBody is returned when a request body does not decode into the model.
	ErrInvalidBody = errors.New("body does not match model")
)

// Service manages offline records.
type Service struct {
	store *store.Store
	queue *queue.Queue
}

// New returns a Service.
func New(st *store.Store, q *queue.Queue) *Service {
	return &Service{store: st, queue: q}
}

// Created is the outcome of CreateOffline.
type Created struct {
	Record models.Record
	Entry  *queue.Entry
}

// newRecord returns an empty record for any locally stored model.
func newRecord(model string) (models.Record, bool) {
	if rec, ok := models.NewRecord(model); ok {
		return rec, true
	}
	if model == models.ModelUsers {
		return &models.User{}, true
	}
	return nil, false
}

// Decode parses body into a typed record of model and validates it. It does
// not touch the store.
func Decode(model string, body []byte) (models.Record, error) {
	rec, ok := models.NewRecord(model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if verr := validation.ValidateStruct(rec); verr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBody, verr)
	}
	if r, ok := rec.(*models.Report); ok && r.Type == "" {
		r.Type = r.ReportType
	}
	return rec, nil
}

// CreateOffline stores body as a pending record of model and enqueues req as
// its CREATE mutation in the same transaction.
func (s *Service) CreateOffline(ctx context.Context, model string, body []byte, req queue.Request) (*Created, error) {
	rec, err := Decode(model, body)
	if err != nil {
		return nil, err
	}
	meta := rec.Meta()
	*meta = models.RecordMeta{
		SyncStatus: models.SyncPending,
		IsOffline:  true,
	}

	var entry *queue.Entry
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		key, err := tx.Add(model, rec)
		if err != nil {
			return err
		}
		meta.ID = key.Int()
		meta.LocalID = key.Int()

		req.Action = queue.ActionCreate
		req.Model = model
		req.LocalID = key.Int()
		entry, err = s.queue.EnqueueTx(tx, req)
		if err != nil {
			return err
		}

		meta.QueueID = entry.ID
		_, err = tx.Put(model, rec)
		return err
	})
	if err != nil {
		s.queue.RecordEnqueueFailure(err)
		return nil, err
	}
	s.queue.RecordEnqueued(entry)

	logging.Ctx(ctx).Info().
		Str("model", model).
		Int64("local_id", meta.ID).
		Int64("entry_id", entry.ID).
		Msg("Record created offline")
	return &Created{Record: rec, Entry: entry}, nil
}

// OnSynced reconciles the record created by entry: it moves to serverID
// (when given and free) and becomes synced. Entries that did not create a
// record are ignored.
func (s *Service) OnSynced(ctx context.Context, entry *queue.Entry, serverID *int64) error {
	if entry.Action != queue.ActionCreate || entry.LocalID == 0 {
		return nil
	}
	rec, ok := newRecord(entry.Model)
	if !ok {
		return nil
	}

	return s.store.Update(ctx, func(tx *store.Tx) error {
		found, err := tx.Get(entry.Model, store.IntKey(entry.LocalID), rec)
		if err != nil || !found {
			return err
		}
		meta := rec.Meta()
		meta.SyncStatus = models.SyncSynced
		meta.IsOffline = false
		meta.LocalID = entry.LocalID

		if serverID != nil && *serverID != entry.LocalID {
			occupant, err := occupantMeta(tx, entry.Model, *serverID)
			if err != nil {
				return err
			}
			if occupant != nil && occupant.IsOffline {
				logging.Ctx(ctx).Warn().
					Str("model", entry.Model).
					Int64("local_id", entry.LocalID).
					Int64("server_id", *serverID).
					Msg("Server id is held by another offline record, keeping local id")
			} else {
				if err := tx.Delete(entry.Model, store.IntKey(entry.LocalID)); err != nil {
					return err
				}
				meta.ID = *serverID
			}
		}
		_, err = tx.Put(entry.Model, rec)
		return err
	})
}

// newOccupant returns the metadata of the record stored under id, or nil.
func occupantMeta(tx *store.Tx, model string, id int64) (*models.RecordMeta, error) {
	var meta models.RecordMeta
	found, err := tx.Get(model, store.IntKey(id), &meta)
	if err != nil || !found {
		return nil, err
	}
	return &meta, nil
}

// OnAbandoned marks the record created by entry as failed.
func (s *Service) OnAbandoned(ctx context.Context, entry *queue.Entry) error {
	if entry.Action != queue.ActionCreate || entry.LocalID == 0 {
		return nil
	}
	rec, ok := newRecord(entry.Model)
	if !ok {
		return nil
	}
	return s.store.Update(ctx, func(tx *store.Tx) error {
		found, err := tx.Get(entry.Model, store.IntKey(entry.LocalID), rec)
		if err != nil || !found {
			return err
		}
		rec.Meta().SyncStatus = models.SyncFailed
		_, err = tx.Put(entry.Model, rec)
		return err
	})
}

// List returns the records of model, optionally filtered by sync status.
func (s *Service) List(ctx context.Context, model string, status models.SyncStatus) ([]json.RawMessage, error) {
	if _, ok := newRecord(model); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}
	q := store.Query{}
	if status != "" {
		q = store.Query{Index: "sync_status", Value: string(status)}
		if model == models.ModelUsers {
			return nil, fmt.Errorf("%w: users have no sync status", ErrUnsupportedModel)
		}
	}
	return s.store.GetAll(ctx, model, q)
}

// Get returns the record of model stored under id.
func (s *Service) Get(ctx context.Context, model string, id int64) (models.Record, error) {
	rec, ok := newRecord(model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}
	found, err := s.store.Get(ctx, model, store.IntKey(id), rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s/%d: %w", model, id, store.ErrNotFound)
	}
	return rec, nil
}
