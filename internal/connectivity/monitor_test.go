// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/upstream"
)

func newTestMonitor(t *testing.T, url string) (*Monitor, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	m, err := New(Config{HealthURL: url, ProbeInterval: 100 * time.Millisecond, ProbeTimeout: 100 * time.Millisecond}, rec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m, rec
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{"http://u/", time.Second, time.Second}, false},
		{"no url", Config{"", time.Second, time.Second}, true},
		{"zero interval", Config{"http://u/", 0, time.Second}, true},
		{"timeout above interval", Config{"http://u/", time.Second, 2 * time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReports_FlipStateAndNotify(t *testing.T) {
	m, rec := newTestMonitor(t, "http://upstream/")

	var mu sync.Mutex
	var seen []bool
	m.OnChange(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})

	if !m.Online() {
		t.Fatal("Monitor should start online")
	}
	m.ReportFailure(errors.New("connection refused"))
	m.ReportFailure(errors.New("connection refused"))
	if m.Online() {
		t.Fatal("Expected offline after failure report")
	}
	m.ReportSuccess()
	if !m.Online() {
		t.Fatal("Expected online after success report")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] || !seen[1] {
		t.Errorf("listener saw %v, want [false true]", seen)
	}
	if n := len(rec.OfType(events.TypeOffline)); n != 1 {
		t.Errorf("offline events = %d, want 1", n)
	}
	if n := len(rec.OfType(events.TypeOnline)); n != 1 {
		t.Errorf("online events = %d, want 1", n)
	}
	if m.Status().LastFailure != "connection refused" {
		t.Errorf("LastFailure = %q", m.Status().LastFailure)
	}
}

func TestReportFailure_IgnoresBreakerRejection(t *testing.T) {
	m, _ := newTestMonitor(t, "http://upstream/")
	m.ReportFailure(&upstream.NetworkError{URL: "http://upstream/api/", Err: gobreaker.ErrOpenState})
	if !m.Online() {
		t.Error("Breaker rejection should not flip the state")
	}
}

func TestProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	m, _ := newTestMonitor(t, srv.URL)
	m.ReportFailure(errors.New("down"))

	if !m.Probe(context.Background()) {
		t.Fatal("Probe against live server should succeed")
	}
	if !m.Online() {
		t.Error("Probe success should bring the monitor online")
	}

	status.Store(http.StatusServiceUnavailable)
	if !m.Probe(context.Background()) {
		t.Error("Any HTTP response should count as reachable")
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m, rec := newTestMonitor(t, url)
	if m.Probe(context.Background()) {
		t.Fatal("Probe against closed server should fail")
	}
	if m.Online() {
		t.Error("Expected offline")
	}
	if len(rec.OfType(events.TypeOffline)) != 1 {
		t.Error("Expected an offline event")
	}
}

func TestStartStop(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, _ := newTestMonitor(t, srv.URL)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("Expected running")
	}
	deadline := time.Now().Add(2 * time.Second)
	for probes.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()
	if m.IsRunning() {
		t.Error("Expected stopped")
	}
	if probes.Load() < 2 {
		t.Errorf("probes = %d, want at least 2", probes.Load())
	}
}
