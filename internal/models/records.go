// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package models

import (
	"time"
)

// SyncStatus tracks whether a locally created record has reached the upstream.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Model names double as store collection names.
const (
	ModelComplaints = "complaints"
	ModelReports    = "reports"
	ModelUsers      = "users"
)

// RecordMeta is the bookkeeping every offline record carries next to its payload.
//
// ID is the local auto-increment key while the record is pending and is
// replaced by the upstream id once the originating mutation is synced.
type RecordMeta struct {
	ID         int64      `json:"id,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	SyncStatus SyncStatus `json:"sync_status,omitempty" validate:"omitempty,oneof=pending synced failed"`
	IsOffline  bool       `json:"is_offline,omitempty"`
	QueueID    int64      `json:"queue_id,omitempty"`
	LocalID    int64      `json:"local_id,omitempty"`
}

// Record is implemented by every typed offline model.
type Record interface {
	Meta() *RecordMeta
	Model() string
}

// Complaint is the offline shape of a complaint submission.
type Complaint struct {
	RecordMeta
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Category    *int64 `json:"category,omitempty"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=DRAFT SUBMITTED IN_REVIEW IN_PROGRESS RESOLVED CLOSED REOPENED CANCELLED WITHDRAWN"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	UserID      *int64 `json:"user_id,omitempty"`
}

func (c *Complaint) Meta() *RecordMeta { return &c.RecordMeta }
func (c *Complaint) Model() string     { return ModelComplaints }

// Report is the offline shape of a report request.
// Type is the indexed field; pages usually send report_type and the records
// package copies it over when Type is empty.
type Report struct {
	RecordMeta
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty" validate:"omitempty,oneof=COMPLAINT PERFORMANCE SATISFACTION DEPARTMENT CUSTOM"`
	ReportType  string `json:"report_type,omitempty" validate:"omitempty,oneof=COMPLAINT PERFORMANCE SATISFACTION DEPARTMENT CUSTOM"`
	Format      string `json:"format,omitempty" validate:"omitempty,oneof=PDF EXCEL CSV JSON"`
	Complaint   *int64 `json:"complaint,omitempty"`
}

func (r *Report) Meta() *RecordMeta { return &r.RecordMeta }
func (r *Report) Model() string     { return ModelReports }

// User is a cached user profile. Users are never created offline.
type User struct {
	RecordMeta
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (u *User) Meta() *RecordMeta { return &u.RecordMeta }
func (u *User) Model() string     { return ModelUsers }

// NewRecord returns an empty typed record for model, or false if the model
// cannot be created offline.
func NewRecord(model string) (Record, bool) {
	switch model {
	case ModelComplaints:
		return &Complaint{}, true
	case ModelReports:
		return &Report{}, true
	default:
		return nil, false
	}
}
