// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package websocket is the gateway-to-page message channel.

Pages open a WebSocket to /_offline/ws. The Hub fans every notification
surface message (NOTIFICATION, SHOW_NOTIFICATION, UPDATE_AVAILABLE,
SYNC_STATUS) out to all connected pages, in connection order.

Page messages:

	{"type":"ping"}      answered with {"type":"pong"}
	{"type":"SYNC_NOW"}  runs the SyncHandler (a manual drain trigger)

Anything else is answered with {"type":"error","error":"..."}.

Each client runs a read pump and a write pump. A client whose send buffer
fills up is dropped rather than slowing the broadcast for everyone else.

Usage:

	hub := websocket.NewHub()
	hub.SetSyncHandler(func() { coordinator.Trigger(syncer.TriggerManual) })
	go hub.RunWithContext(ctx)

	conn, _ := upgrader.Upgrade(w, r, nil)
	hub.Attach(conn)

	hub.Broadcast(notify.UpdateAvailableMessage{Type: "UPDATE_AVAILABLE", Version: "v2"})
*/
package websocket
