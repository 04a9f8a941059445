// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func setupWebSocketServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWebSocket(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	return string(data)
}

func TestClient_PingPong(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, setupWebSocketServer(t, hub))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if got := readText(t, conn); got != `{"type":"pong"}` {
		t.Errorf("reply = %s", got)
	}
}

func TestClient_SyncNowAndBroadcast(t *testing.T) {
	hub := NewHub()
	var syncs atomic.Int32
	hub.SetSyncHandler(func() { syncs.Add(1) })
	runHub(t, hub)

	conn := dialWebSocket(t, setupWebSocketServer(t, hub))
	waitForClients(t, hub, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SYNC_NOW"}`)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for syncs.Load() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("sync handler not called")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(map[string]string{"type": "SYNC_STATUS"})
	if got := readText(t, conn); got != `{"type":"SYNC_STATUS"}` {
		t.Errorf("broadcast = %s", got)
	}
}

func TestClient_InvalidMessage(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, setupWebSocketServer(t, hub))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if got := readText(t, conn); !strings.Contains(got, `"type":"error"`) {
		t.Errorf("reply = %s", got)
	}
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	hub := setupHub(t)
	conn := dialWebSocket(t, setupWebSocketServer(t, hub))
	waitForClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitForClients(t, hub, 0)
}

