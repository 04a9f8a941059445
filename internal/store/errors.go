// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrNotFound is returned by Replace and the queue when a key is absent.
	ErrNotFound = errors.New("not found")

	// ErrConstraint is matched by every ConstraintError.
	ErrConstraint = errors.New("constraint violation")

	// ErrUnknownCollection is returned for a collection not in the schema.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrMissingKey is returned when a document lacks its key and the collection does not auto-increment.
	ErrMissingKey = errors.New("document has no key")

	// ErrUnknownIndex is returned for an index not declared on the collection.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrInvalidValue is returned for a document that is not a JSON object
	// or a query value that cannot be indexed.
	ErrInvalidValue = errors.New("invalid value")
)

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MetricLabel names the error class for metrics.
func (e *StorageError) MetricLabel() string { return "storage" }

// ConstraintError reports a duplicate primary key or unique index value.
type ConstraintError struct {
	Collection string
	Index      string // empty for the primary key
	Value      interface{}
}

func (e *ConstraintError) Error() string {
	if e.Index == "" {
		return fmt.Sprintf("%s: duplicate key %v", e.Collection, e.Value)
	}
	return fmt.Sprintf("%s: duplicate value %v for unique index %s", e.Collection, e.Value, e.Index)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

// MetricLabel names the error class for metrics.
func (e *ConstraintError) MetricLabel() string { return "constraint" }

// QuotaExceededError reports that a size or count limit was reached.
type QuotaExceededError struct {
	Resource string // "store" or "queue"
	Limit    int64
	Used     int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d of %d used", e.Resource, e.Used, e.Limit)
}

// MetricLabel names the error class for metrics.
func (e *QuotaExceededError) MetricLabel() string { return "quota_exceeded" }

// IsQuotaExceeded reports whether err is or wraps a QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// wrapErr classifies a raw error from a transaction. Package errors pass
// through; disk-full becomes a QuotaExceededError; anything else is a StorageError.
func (s *Store) wrapErr(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ce *ConstraintError
		qe *QuotaExceededError
		se *StorageError
	)
	switch {
	case errors.As(err, &ce), errors.As(err, &qe), errors.As(err, &se):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownCollection),
		errors.Is(err, ErrMissingKey), errors.Is(err, ErrUnknownIndex),
		errors.Is(err, ErrStoreClosed), errors.Is(err, ErrInvalidValue),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, syscall.ENOSPC):
		lsm, vlog := s.db.Size()
		return &QuotaExceededError{Resource: "store", Limit: s.config.MaxSizeBytes, Used: lsm + vlog}
	case errors.Is(err, badger.ErrDBClosed):
		return ErrStoreClosed
	}
	return &StorageError{Op: op, Collection: collection, Err: err}
}
