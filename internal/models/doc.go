// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package models defines the data structures shared across the gateway.

  - APIResponse, Metadata, APIError: the control API envelope
  - OfflineResponse: the body a page receives when its write was queued or
    its read could not be served
  - Complaint, Report, User: typed offline records with validator tags,
    selected by model name through NewRecord
  - RecordMeta, SyncStatus: bookkeeping carried by every offline record

Models are plain structs with json tags; persistence lives in the store package.
*/
package models
