// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package models

import (
	"time"
)

// APIResponse is the envelope used by every control API endpoint under /_offline/.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"pending": 3, "abandoned": 0},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "SYNC_IN_PROGRESS", "message": "A drain pass is already running"},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Count       *int      `json:"count,omitempty"`
}

// APIError carries a machine-readable code and a human message.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - NOT_FOUND: Queue entry, record or notification doesn't exist
//   - STORAGE_ERROR: Durable store failure
//   - QUOTA_EXCEEDED: Store or queue is full
//   - SYNC_IN_PROGRESS: A drain pass is already running
//   - RATE_LIMIT_EXCEEDED: Too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// OfflineResponse is the body returned to a page when the gateway answers
// on behalf of an unreachable upstream. The page treats success=false with
// offline=true as "accepted locally".
type OfflineResponse struct {
	Success bool   `json:"success"`
	Offline bool   `json:"offline"`
	Message string `json:"message"`
	QueueID int64  `json:"queue_id,omitempty"`
	LocalID int64  `json:"local_id,omitempty"`
	Error   string `json:"error,omitempty"`
}
