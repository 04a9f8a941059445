// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package store provides the gateway's durable, transactional document store on BadgerDB.
//
// Documents are JSON objects grouped into named collections. Each collection
// has a primary key field, optional auto-increment, secondary indexes and
// optional created_at/updated_at maintenance:
//
//	complaints  id (auto)  status, created_at, user_id, sync_status
//	reports     id (auto)  type, created_at, sync_status
//	users       id         email (unique)
//	sync_queue  id (auto)  action, timestamp, synced
//	cache       key        expiry
//
// # Key Layout
//
//	d/<collection>/<pk>                    document JSON
//	i/<collection>/<index>/<value><pk>     index entry, value is the encoded pk
//	s/<collection>                         auto-increment sequence
//
// Index values use an order-preserving encoding (null < false < true <
// numbers < strings) so range scans over numeric fields such as the cache
// expiry sort numerically.
//
// # Transactions
//
// Every top-level operation runs in its own BadgerDB transaction; Update and
// View expose a Tx for multi-step work. A failing transaction leaves the
// store unchanged. ErrConflict is retried a bounded number of times.
//
// # Usage
//
//	st, err := store.Open(store.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	key, err := st.Add(ctx, store.Complaints, complaint)
//	var got models.Complaint
//	found, err := st.Get(ctx, store.Complaints, key, &got)
//	pending, err := store.GetAllAs[models.Complaint](ctx, st, store.Complaints,
//	    store.Query{Index: "sync_status", Value: "pending"})
package store
