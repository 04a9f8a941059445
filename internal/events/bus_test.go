// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("Subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return Event{}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	serverID := int64(77)
	if err := bus.Publish(ctx, Event{Type: TypeSynced, EntryID: 3, ServerID: &serverID}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(ctx, Event{Type: TypeOffline}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	first := receive(t, sub)
	if first.Type != TypeSynced || first.EntryID != 3 || first.ServerID == nil || *first.ServerID != 77 {
		t.Errorf("first event = %+v", first)
	}
	if first.ID == "" || first.Time.IsZero() {
		t.Error("Publish should fill ID and Time")
	}
	if second := receive(t, sub); second.Type != TypeOffline {
		t.Errorf("second event type = %s, want offline", second.Type)
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()
	ctx := context.Background()

	a, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	b, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := bus.Publish(ctx, Event{Type: TypeQueued, EntryID: 1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if ev := receive(t, a); ev.EntryID != 1 {
		t.Errorf("subscriber a got %+v", ev)
	}
	if ev := receive(t, b); ev.EntryID != 1 {
		t.Errorf("subscriber b got %+v", ev)
	}
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus(DefaultConfig())
	sub, err := bus.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Second Close returned %v", err)
	}
	if err := bus.Publish(context.Background(), Event{Type: TypeOnline}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}

	select {
	case _, ok := <-sub:
		if ok {
			t.Error("Expected subscription channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscription channel not closed after Close")
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), Event{Type: TypeQueued})
	_ = r.Publish(context.Background(), Event{Type: TypeSynced})
	_ = r.Publish(context.Background(), Event{Type: TypeQueued})

	if n := len(r.Events()); n != 3 {
		t.Errorf("Events() = %d, want 3", n)
	}
	if n := len(r.OfType(TypeQueued)); n != 2 {
		t.Errorf("OfType(queued) = %d, want 2", n)
	}
}
