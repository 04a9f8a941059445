// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package notify

import "time"

// Page message types.
const (
	TypeNotification     = "NOTIFICATION"
	TypeShowNotification = "SHOW_NOTIFICATION"
	TypeUpdateAvailable  = "UPDATE_AVAILABLE"
	TypeSyncStatus       = "SYNC_STATUS"
)

// Kind is the severity of a toast.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError:
		return true
	}
	return false
}

// Notification is a visible toast.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	TimeoutMS int64     `json:"timeout_ms"`
}

// NotificationMessage pushes a toast to pages.
type NotificationMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	TimeoutMS int64  `json:"timeout_ms"`
}

// Action is a button on a system notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Options mirrors the system notification options pages pass through.
type Options struct {
	Body               string                 `json:"body,omitempty"`
	Icon               string                 `json:"icon,omitempty"`
	Badge              string                 `json:"badge,omitempty"`
	Tag                string                 `json:"tag,omitempty"`
	Vibrate            []int                  `json:"vibrate,omitempty"`
	RequireInteraction bool                   `json:"requireInteraction,omitempty"`
	Actions            []Action               `json:"actions,omitempty"`
	Data               map[string]interface{} `json:"data,omitempty"`
}

// ShowNotificationMessage asks pages to raise a system notification.
type ShowNotificationMessage struct {
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Options Options `json:"options"`
}

// UpdateAvailableMessage announces a new cache version.
type UpdateAvailableMessage struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// SyncStatusMessage is a queue and connectivity snapshot.
type SyncStatusMessage struct {
	Type      string     `json:"type"`
	Online    bool       `json:"online"`
	Pending   int64      `json:"pending"`
	Abandoned int64      `json:"abandoned"`
	Syncing   bool       `json:"syncing"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}

// PushPayload is the JSON body of an upstream push. Missing fields take
// the configured defaults.
type PushPayload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Icon  string                 `json:"icon"`
	Badge string                 `json:"badge"`
	Tag   string                 `json:"tag"`
	Data  map[string]interface{} `json:"data"`
}
