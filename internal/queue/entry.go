// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package queue

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Action classifies a queued mutation.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ActionForMethod maps an HTTP method to the queue action it represents.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodPost:
		return ActionCreate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionUpdate
	}
}

// SchemaVersion is stamped on every new entry.
const SchemaVersion = 1

// Entry is a persisted mutation awaiting replay.
type Entry struct {
	ID            int64  `json:"id,omitempty"`
	Action        Action `json:"action"`
	Model         string `json:"model,omitempty"`
	SchemaVersion int    `json:"schema_version"`

	// LocalID links a CREATE to the offline record it produced.
	LocalID int64 `json:"local_id,omitempty"`

	// Replay request. Payload is replayed byte-for-byte.
	TargetURL  string            `json:"target_url"`
	HTTPMethod string            `json:"http_method"`
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    []byte            `json:"payload,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`

	IdempotencyKey string `json:"idempotency_key"`

	Synced   bool       `json:"synced"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
	ServerID *int64     `json:"server_id,omitempty"`

	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	Abandoned     bool       `json:"abandoned"`
	AbandonedAt   *time.Time `json:"abandoned_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// Pending reports whether the entry is still eligible for replay.
func (e *Entry) Pending() bool {
	return !e.Synced && !e.Abandoned
}

// Request describes a mutation to enqueue.
type Request struct {
	Action    Action            `json:"action" validate:"required,oneof=CREATE UPDATE DELETE"`
	Model     string            `json:"model,omitempty"`
	TargetURL string            `json:"target_url" validate:"required,targeturl"`
	Method    string            `json:"http_method" validate:"required,replaymethod"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      []byte            `json:"body,omitempty"`
	LocalID   int64             `json:"local_id,omitempty"`

	// Timestamp defaults to now.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Stats summarizes the queue.
type Stats struct {
	Pending       int64      `json:"pending"`
	Abandoned     int64      `json:"abandoned"`
	Synced        int64      `json:"synced"`
	OldestPending *time.Time `json:"oldest_pending,omitempty"`
}

var (
	// ErrAlreadySynced is returned by Requeue for an entry that has been replayed.
	ErrAlreadySynced = errors.New("entry already synced")

	// ErrNotAbandoned is returned by Requeue for an entry that is still pending.
	ErrNotAbandoned = errors.New("entry is not abandoned")
)

// RetryExhaustedError is returned by RecordFailure when that failure
// abandoned the entry.
type RetryExhaustedError struct {
	EntryID int64
	Retries int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("queue entry %d abandoned after %d attempts", e.EntryID, e.Retries)
}

// MetricLabel names the error class for metrics.
func (e *RetryExhaustedError) MetricLabel() string { return "retry_exhausted" }

// IsRetryExhausted reports whether err is or wraps a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var re *RetryExhaustedError
	return errors.As(err, &re)
}
