// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package events is the in-process sync event bus. Producers (interceptor,
// sync coordinator, connectivity monitor) publish typed events; consumers
// (notify, websocket status) subscribe. Transport is Watermill's gochannel
// Pub/Sub on a single topic.
package events

import (
	"time"
)

// Topic carries every sync event.
const Topic = "sync.events"

// Type identifies an event.
type Type string

const (
	TypeQueued         Type = "queued"
	TypeQueueRejected  Type = "queue_rejected"
	TypeSynced         Type = "synced"
	TypeFailed         Type = "failed"
	TypeAbandoned      Type = "abandoned"
	TypeDrainCompleted Type = "drain_completed"
	TypeOnline         Type = "online"
	TypeOffline        Type = "offline"
)

// Event is the payload of every message on Topic. Fields not relevant to a
// type are left empty.
type Event struct {
	ID   string    `json:"id"`
	Type Type      `json:"type"`
	Time time.Time `json:"time"`

	// Queue entry events
	EntryID   int64  `json:"entry_id,omitempty"`
	Model     string `json:"model,omitempty"`
	LocalID   int64  `json:"local_id,omitempty"`
	ServerID  *int64 `json:"server_id,omitempty"`
	TargetURL string `json:"target_url,omitempty"`
	Method    string `json:"method,omitempty"`
	Retries   int    `json:"retries,omitempty"`
	Error     string `json:"error,omitempty"`

	// drain_completed
	Trigger   string `json:"trigger,omitempty"`
	Attempted int    `json:"attempted,omitempty"`
	Succeeded int    `json:"succeeded,omitempty"`
	Failed    int    `json:"failed,omitempty"`
	Abandoned int    `json:"abandoned,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}
