// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/solutio/internal/config"
)

func TestWebSocket_Upgrade(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/_offline/ws"

	t.Run("same origin", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{srv.URL}})
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer conn.Close()
		if resp.StatusCode != http.StatusSwitchingProtocols {
			t.Errorf("status = %d", resp.StatusCode)
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if !strings.Contains(string(data), `"pong"`) {
			t.Errorf("reply = %s, want pong", data)
		}
	})

	t.Run("missing origin", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			conn.Close()
			t.Fatal("expected handshake failure")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("resp = %v, want 403", resp)
		}
	})
}

func TestCheckWebSocketOrigin(t *testing.T) {
	h := NewHandler(Deps{Config: &config.Config{Security: config.SecurityConfig{
		CORSOrigins: []string{"https://app.example"},
	}}})

	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"same host", "gateway:8360", "http://gateway:8360", true},
		{"configured origin", "gateway:8360", "https://app.example", true},
		{"other origin", "gateway:8360", "https://evil.example", false},
		{"missing", "gateway:8360", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/_offline/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := h.checkWebSocketOrigin(r); got != tt.want {
				t.Errorf("checkWebSocketOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}
