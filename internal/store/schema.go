// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

// Collection names.
const (
	Complaints = "complaints"
	Reports    = "reports"
	Users      = "users"
	SyncQueue  = "sync_queue"
	Cache      = "cache"
)

// Index declares a secondary index over a top-level document field.
type Index struct {
	Name   string
	Field  string
	Unique bool
}

// Schema declares a collection.
type Schema struct {
	Name          string
	KeyField      string
	StringKey     bool
	AutoIncrement bool
	Timestamps    bool
	Indexes       []Index
}

func (s *Schema) index(name string) (Index, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// DefaultSchemas is the persisted layout of the gateway database.
func DefaultSchemas() []Schema {
	return []Schema{
		{
			Name:          Complaints,
			KeyField:      "id",
			AutoIncrement: true,
			Timestamps:    true,
			Indexes: []Index{
				{Name: "status", Field: "status"},
				{Name: "created_at", Field: "created_at"},
				{Name: "user_id", Field: "user_id"},
				{Name: "sync_status", Field: "sync_status"},
			},
		},
		{
			Name:          Reports,
			KeyField:      "id",
			AutoIncrement: true,
			Timestamps:    true,
			Indexes: []Index{
				{Name: "type", Field: "type"},
				{Name: "created_at", Field: "created_at"},
				{Name: "sync_status", Field: "sync_status"},
			},
		},
		{
			Name:       Users,
			KeyField:   "id",
			Timestamps: true,
			Indexes: []Index{
				{Name: "email", Field: "email", Unique: true},
			},
		},
		{
			Name:          SyncQueue,
			KeyField:      "id",
			AutoIncrement: true,
			Indexes: []Index{
				{Name: "action", Field: "action"},
				{Name: "timestamp", Field: "timestamp"},
				{Name: "synced", Field: "synced"},
			},
		},
		{
			Name:      Cache,
			KeyField:  "key",
			StringKey: true,
			Indexes: []Index{
				{Name: "expiry", Field: "expiry"},
			},
		},
	}
}
