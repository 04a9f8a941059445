// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package upstream

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeReporter struct {
	mu        sync.Mutex
	successes int
	failures  []error
}

func (r *fakeReporter) ReportSuccess() {
	r.mu.Lock()
	r.successes++
	r.mu.Unlock()
}

func (r *fakeReporter) ReportFailure(err error) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
}

func testConfig(url string) Config {
	return Config{
		BaseURL:          url,
		Timeout:          2 * time.Second,
		MaxRequests:      1,
		Interval:         time.Minute,
		BreakerTimeout:   time.Minute,
		FailureThreshold: 2,
	}
}

func newClient(t *testing.T, name string, cfg Config) (*Client, *fakeReporter) {
	t.Helper()
	c, err := New(name, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r := &fakeReporter{}
	c.SetReporter(r)
	return c, r
}

// deadURL returns the URL of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		if _, err := New("test-invalid", Config{BaseURL: u}); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestDo_ReturnsServerErrorsAsResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, rep := newClient(t, "test-5xx", testConfig(srv.URL))
	for _, path := range []string{"/ok", "/boom", "/boom", "/boom"} {
		req, _ := http.NewRequest(http.MethodGet, c.Resolve(path), nil)
		resp, err := c.Do(req)
		if err != nil {
			t.Fatalf("Do(%s) failed: %v", path, err)
		}
		resp.Body.Close()
	}
	if c.State() != "closed" {
		t.Errorf("State = %s, want closed without TripOnServerError", c.State())
	}
	if rep.successes != 4 || len(rep.failures) != 0 {
		t.Errorf("reporter = %d successes, %d failures", rep.successes, len(rep.failures))
	}
}

func TestDo_TripOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.TripOnServerError = true
	c, _ := newClient(t, "test-trip-5xx", cfg)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, c.Resolve("/"), nil)
		resp, err := c.Do(req)
		if err != nil {
			t.Fatalf("Do #%d failed: %v", i, err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d", resp.StatusCode)
		}
		resp.Body.Close()
	}
	if c.State() != "open" {
		t.Errorf("State = %s, want open", c.State())
	}
}

func TestDo_NetworkErrorOpensBreaker(t *testing.T) {
	c, rep := newClient(t, "test-network", testConfig(deadURL(t)))

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, c.Resolve("/"), nil)
		_, err := c.Do(req)
		if !IsNetworkError(err) {
			t.Fatalf("Do #%d = %v, want NetworkError", i, err)
		}
		if IsRejected(err) {
			t.Fatalf("Do #%d rejected before the breaker opened", i)
		}
	}
	if c.State() != "open" {
		t.Fatalf("State = %s, want open", c.State())
	}

	req, _ := http.NewRequest(http.MethodGet, c.Resolve("/"), nil)
	_, err := c.Do(req)
	if !IsRejected(err) {
		t.Errorf("Do with open breaker = %v, want rejection", err)
	}
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.MetricLabel() != "breaker_open" {
		t.Errorf("rejection should be a NetworkError labelled breaker_open, got %v", err)
	}
	if len(rep.failures) != 3 {
		t.Errorf("reported failures = %d, want 3", len(rep.failures))
	}
}

func TestResolve(t *testing.T) {
	c, err := New("test-resolve", Config{BaseURL: "http://upstream:8000/"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"/api/complaints/", "http://upstream:8000/api/complaints/"},
		{"/api/complaints/?page=2", "http://upstream:8000/api/complaints/?page=2"},
		{"https://other/x", "https://other/x"},
	}
	for _, tt := range tests {
		if got := c.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
