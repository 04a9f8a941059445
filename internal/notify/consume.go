// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package notify

import (
	"context"
	"fmt"

	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/logging"
)

// User-facing messages.
const (
	MsgQueued   = "Request saved offline and will be sent when connectivity returns."
	MsgOffline  = "You are offline. Changes will be synced when the connection returns."
	MsgOnline   = "Connection restored"
	MsgRejected = "The request could not be saved offline."
)

// Subscriber yields sync events until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan events.Event, error)
}

// StatusFunc returns the current sync snapshot. It is called after every
// drain and connectivity change.
type StatusFunc func(ctx context.Context) (SyncStatusMessage, error)

// Consume turns sync events into toasts until ctx ends or the subscription
// closes. status may be nil.
func (c *Center) Consume(ctx context.Context, sub Subscriber, status StatusFunc) error {
	ch, err := sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to sync events: %w", err)
	}
	logging.Info().Msg("Notification consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			c.handle(ev)
			if status != nil && refreshesStatus(ev.Type) {
				if snap, err := status(ctx); err == nil {
					c.SyncStatus(snap)
				} else {
					logging.Debug().Err(err).Msg("Failed to build sync status")
				}
			}
		}
	}
}

func refreshesStatus(t events.Type) bool {
	switch t {
	case events.TypeQueued, events.TypeDrainCompleted, events.TypeOnline, events.TypeOffline:
		return true
	}
	return false
}

// handle maps one event to at most one toast. Individual synced events are
// summarised by drain_completed.
func (c *Center) handle(ev events.Event) {
	switch ev.Type {
	case events.TypeQueued:
		c.Notify(KindWarning, MsgQueued)
	case events.TypeQueueRejected:
		msg := ev.Error
		if msg == "" {
			msg = MsgRejected
		}
		c.Notify(KindError, msg)
	case events.TypeDrainCompleted:
		if ev.Succeeded > 0 {
			c.Notify(KindSuccess, syncedMessage(ev.Succeeded))
		}
	case events.TypeAbandoned:
		c.Notify(KindError, fmt.Sprintf(
			"%s %s could not be synced after %d attempts and needs attention (queue entry %d).",
			ev.Method, ev.TargetURL, ev.Retries, ev.EntryID))
	case events.TypeOffline:
		c.Notify(KindWarning, MsgOffline)
	case events.TypeOnline:
		c.Notify(KindSuccess, MsgOnline)
	}
}

func syncedMessage(n int) string {
	if n == 1 {
		return "1 item synced"
	}
	return fmt.Sprintf("%d items synced", n)
}
