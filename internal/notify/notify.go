// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package notify is the user-facing notification surface.
//
// A Center keeps a bounded queue of toasts that dismiss themselves after a
// fixed timeout, and pushes every toast, system notification, update
// announcement and sync snapshot to connected pages through a Broadcaster.
// Consume turns sync events into toasts.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/solutio/internal/logging"
)

// Broadcaster delivers a JSON-encodable message to every connected page.
type Broadcaster interface {
	Broadcast(msg interface{})
}

type toast struct {
	Notification
	timer *time.Timer
}

// Center owns the visible toast queue.
type Center struct {
	config Config
	out    Broadcaster

	mu     sync.Mutex
	active []*toast
	closed bool
}

// New returns a Center. out may be nil, in which case nothing is pushed.
func New(cfg Config, out Broadcaster) (*Center, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Center{config: cfg, out: out}, nil
}

// Notify raises a toast. Unknown kinds are shown as info. When the queue is
// full the oldest toast is dropped.
func (c *Center) Notify(kind Kind, message string) Notification {
	if !kind.Valid() {
		kind = KindInfo
	}
	n := Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
		TimeoutMS: c.config.DismissAfter.Milliseconds(),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	t := &toast{Notification: n}
	t.timer = time.AfterFunc(c.config.DismissAfter, func() { c.Dismiss(n.ID) })
	c.active = append(c.active, t)
	for len(c.active) > c.config.MaxVisible {
		c.active[0].timer.Stop()
		c.active = c.active[1:]
		notificationsDropped.Inc()
	}
	c.mu.Unlock()

	notificationsTotal.WithLabelValues(string(kind)).Inc()
	logging.Debug().Str("kind", string(kind)).Str("message", message).Msg("Notification raised")

	c.send(TypeNotification, NotificationMessage{
		Type:      TypeNotification,
		ID:        n.ID,
		Kind:      n.Kind,
		Message:   n.Message,
		TimeoutMS: n.TimeoutMS,
	})
	return n
}

// Active returns the visible toasts, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	for i, t := range c.active {
		out[i] = t.Notification
	}
	return out
}

// Dismiss removes a toast. It reports whether the toast was visible.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.active {
		if t.ID == id {
			t.timer.Stop()
			c.active = append(c.active[:i], c.active[i+1:]...)
			return true
		}
	}
	return false
}

// ShowNotification asks pages to raise a system notification. Unset icon,
// badge, vibrate and data.timestamp take their defaults.
func (c *Center) ShowNotification(title string, opts Options) {
	if opts.Icon == "" {
		opts.Icon = c.config.Icon
	}
	if opts.Badge == "" {
		opts.Badge = c.config.Badge
	}
	if opts.Vibrate == nil {
		opts.Vibrate = append([]int(nil), c.config.Vibrate...)
	}
	data := make(map[string]interface{}, len(opts.Data)+1)
	for k, v := range opts.Data {
		data[k] = v
	}
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = time.Now().UnixMilli()
	}
	opts.Data = data

	c.send(TypeShowNotification, ShowNotificationMessage{
		Type:    TypeShowNotification,
		Title:   title,
		Options: opts,
	})
}

// Push shows an upstream push payload as a system notification. An empty
// payload shows the default title and body.
func (c *Center) Push(payload []byte) error {
	var p PushPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode push payload: %w", err)
		}
	}
	if p.Title == "" {
		p.Title = c.config.DefaultTitle
	}
	if p.Body == "" {
		p.Body = c.config.DefaultBody
	}
	if p.Data == nil {
		p.Data = map[string]interface{}{"url": "/"}
	}

	c.ShowNotification(p.Title, Options{
		Body:               p.Body,
		Icon:               p.Icon,
		Badge:              p.Badge,
		Tag:                p.Tag,
		RequireInteraction: true,
		Actions: []Action{
			{Action: "open", Title: "Open"},
			{Action: "close", Title: "Close"},
		},
		Data: p.Data,
	})
	return nil
}

// AnnounceUpdate tells pages a new cache version is active.
func (c *Center) AnnounceUpdate(version string) {
	c.send(TypeUpdateAvailable, UpdateAvailableMessage{Type: TypeUpdateAvailable, Version: version})
}

// SyncStatus pushes a queue snapshot.
func (c *Center) SyncStatus(msg SyncStatusMessage) {
	msg.Type = TypeSyncStatus
	c.send(TypeSyncStatus, msg)
}

func (c *Center) send(typ string, msg interface{}) {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return
	}
	out.Broadcast(msg)
	pageMessagesTotal.WithLabelValues(typ).Inc()
}

// Close stops pending dismiss timers. Later toasts are not queued.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.active {
		t.timer.Stop()
	}
	c.active = nil
	c.closed = true
}
