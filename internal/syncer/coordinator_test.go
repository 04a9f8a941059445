// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package syncer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/solutio/internal/connectivity"
	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/models"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/records"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/upstream"
)

type staticTokens struct{ token string }

func (s staticTokens) Token(context.Context) (string, error) { return s.token, nil }

type fixture struct {
	coord   *Coordinator
	queue   *queue.Queue
	records *records.Service
	events  *events.Recorder
}

func testSyncConfig() Config {
	cfg := DefaultConfig()
	cfg.ReplayRate = 1000
	cfg.ReplayBurst = 10
	cfg.ReplayTimeout = 2 * time.Second
	cfg.OnStartup = false
	return cfg
}

func newFixture(t *testing.T, upstreamURL string, threshold uint32, qcfg queue.Config, cfg Config, tokens TokenSource) *fixture {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	q, err := queue.New(st, qcfg)
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	client, err := upstream.New("sync-"+t.Name(), upstream.Config{
		BaseURL:          upstreamURL,
		Timeout:          2 * time.Second,
		MaxRequests:      1,
		BreakerTimeout:   time.Minute,
		FailureThreshold: threshold,
	})
	if err != nil {
		t.Fatalf("upstream.New failed: %v", err)
	}
	rs := records.New(st, q)
	rec := &events.Recorder{}
	c, err := New(cfg, q, rs, client, tokens, rec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &fixture{coord: c, queue: q, records: rs, events: rec}
}

func enqueue(t *testing.T, q *queue.Queue, target string) *queue.Entry {
	t.Helper()
	e, err := q.Enqueue(context.Background(), queue.Request{
		Action:    queue.ActionUpdate,
		Model:     models.ModelComplaints,
		TargetURL: target,
		Method:    http.MethodPatch,
		Headers:   map[string]string{"Content-Type": "application/json"},
		Body:      []byte(`{"status":"closed"}`),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return e
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"short interval", func(c *Config) { c.Interval = time.Millisecond }, true},
		{"no timeout", func(c *Config) { c.ReplayTimeout = 0 }, true},
		{"no rate", func(c *Config) { c.ReplayRate = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDrain_OneFailureDoesNotBlockOthers(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if strings.Contains(r.URL.Path, "/2/") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), testSyncConfig(), nil)
	e1 := enqueue(t, f.queue, "/api/complaints/1/")
	e2 := enqueue(t, f.queue, "/api/complaints/2/")
	e3 := enqueue(t, f.queue, "/api/complaints/3/")

	res, err := f.coord.Drain(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if res.Attempted != 3 || res.Succeeded != 2 || res.Failed != 1 || res.Remaining != 1 {
		t.Errorf("result = %+v", res)
	}

	mu.Lock()
	got := strings.Join(paths, ",")
	mu.Unlock()
	if got != "/api/complaints/1/,/api/complaints/2/,/api/complaints/3/" {
		t.Errorf("replay order = %s", got)
	}

	ctx := context.Background()
	for _, id := range []int64{e1.ID, e3.ID} {
		e, _ := f.queue.Get(ctx, id)
		if !e.Synced {
			t.Errorf("entry %d not synced", id)
		}
	}
	failed, _ := f.queue.Get(ctx, e2.ID)
	if failed.Synced || failed.RetryCount != 1 || failed.LastError == "" {
		t.Errorf("failed entry = %+v", failed)
	}

	if n := len(f.events.OfType(events.TypeSynced)); n != 2 {
		t.Errorf("synced events = %d, want 2", n)
	}
	if n := len(f.events.OfType(events.TypeFailed)); n != 1 {
		t.Errorf("failed events = %d, want 1", n)
	}
	done := f.events.OfType(events.TypeDrainCompleted)
	if len(done) != 1 || done[0].Trigger != string(TriggerManual) || done[0].Succeeded != 2 {
		t.Errorf("drain_completed = %+v", done)
	}
	if last := f.coord.LastResult(); last == nil || last.Succeeded != 2 {
		t.Errorf("LastResult = %+v", last)
	}
}

func TestDrain_ReplaysPayloadAndIdempotencyKey(t *testing.T) {
	type seen struct {
		method, body, key, ctype string
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- seen{r.Method, string(body), r.Header.Get("Idempotency-Key"), r.Header.Get("Content-Type")}
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), testSyncConfig(), nil)
	e := enqueue(t, f.queue, "/api/complaints/7/")
	if _, err := f.coord.Drain(context.Background(), TriggerManual); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	s := <-got
	if s.method != http.MethodPatch || s.body != `{"status":"closed"}` || s.ctype != "application/json" {
		t.Errorf("replayed = %+v", s)
	}
	if s.key == "" || s.key != e.IdempotencyKey {
		t.Errorf("Idempotency-Key = %q, want %q", s.key, e.IdempotencyKey)
	}
}

func TestDrain_AbandonsAtMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	qcfg := queue.DefaultConfig()
	qcfg.MaxRetries = 2
	f := newFixture(t, srv.URL, 1000, qcfg, testSyncConfig(), nil)
	ctx := context.Background()

	body := `{"title":"Pothole","description":"Deep one"}`
	created, err := f.records.CreateOffline(ctx, models.ModelComplaints, []byte(body), queue.Request{
		TargetURL: "/api/complaints/",
		Method:    http.MethodPost,
		Body:      []byte(body),
	})
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}

	res, _ := f.coord.Drain(ctx, TriggerManual)
	if res.Failed != 1 || res.Abandoned != 0 {
		t.Errorf("first pass = %+v", res)
	}
	res, _ = f.coord.Drain(ctx, TriggerManual)
	if res.Abandoned != 1 || res.Remaining != 0 {
		t.Errorf("second pass = %+v", res)
	}

	e, _ := f.queue.Get(ctx, created.Entry.ID)
	if !e.Abandoned || e.RetryCount != 2 {
		t.Errorf("entry = %+v", e)
	}
	rec, err := f.records.Get(ctx, models.ModelComplaints, created.Record.Meta().ID)
	if err != nil {
		t.Fatalf("Get record failed: %v", err)
	}
	if rec.Meta().SyncStatus != models.SyncFailed {
		t.Errorf("SyncStatus = %s, want failed", rec.Meta().SyncStatus)
	}
	ab := f.events.OfType(events.TypeAbandoned)
	if len(ab) != 1 || ab[0].Retries != 2 {
		t.Errorf("abandoned events = %+v", ab)
	}

	// Nothing left to replay.
	res, _ = f.coord.Drain(ctx, TriggerManual)
	if res.Attempted != 0 {
		t.Errorf("third pass attempted %d", res.Attempted)
	}
}

func TestDrain_RemapsCreatedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":501}}`)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), testSyncConfig(), nil)
	ctx := context.Background()

	body := `{"title":"Noise","description":"Loud at night"}`
	created, err := f.records.CreateOffline(ctx, models.ModelComplaints, []byte(body), queue.Request{
		TargetURL: "/api/complaints/",
		Method:    http.MethodPost,
		Body:      []byte(body),
	})
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}
	localID := created.Record.Meta().ID

	if _, err := f.coord.Drain(ctx, TriggerManual); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	e, _ := f.queue.Get(ctx, created.Entry.ID)
	if e.ServerID == nil || *e.ServerID != 501 {
		t.Errorf("ServerID = %v, want 501", e.ServerID)
	}
	if _, err := f.records.Get(ctx, models.ModelComplaints, localID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("local record still present: %v", err)
	}
	rec, err := f.records.Get(ctx, models.ModelComplaints, 501)
	if err != nil {
		t.Fatalf("Get server record failed: %v", err)
	}
	if rec.Meta().SyncStatus != models.SyncSynced || rec.Meta().IsOffline {
		t.Errorf("meta = %+v", rec.Meta())
	}
	synced := f.events.OfType(events.TypeSynced)
	if len(synced) != 1 || synced[0].ServerID == nil || *synced[0].ServerID != 501 || synced[0].LocalID != localID {
		t.Errorf("synced events = %+v", synced)
	}
}

func TestDrain_RefreshesAntiForgeryToken(t *testing.T) {
	type seen struct{ header, cookie string }
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- seen{r.Header.Get("X-CSRFToken"), r.Header.Get("Cookie")}
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), testSyncConfig(), staticTokens{"fresh"})
	_, err := f.queue.Enqueue(context.Background(), queue.Request{
		Action:    queue.ActionDelete,
		TargetURL: "/api/complaints/4/",
		Method:    http.MethodDelete,
		Headers: map[string]string{
			"X-CSRFToken": "stale",
			"Cookie":      "sessionid=abc; csrftoken=stale",
		},
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := f.coord.Drain(context.Background(), TriggerManual); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	s := <-got
	if s.header != "fresh" {
		t.Errorf("X-CSRFToken = %q, want fresh", s.header)
	}
	if s.cookie != "sessionid=abc; csrftoken=fresh" {
		t.Errorf("Cookie = %q", s.cookie)
	}
}

func TestDrain_StopsWhenCircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := newFixture(t, url, 1, queue.DefaultConfig(), testSyncConfig(), nil)
	e1 := enqueue(t, f.queue, "/api/complaints/1/")
	e2 := enqueue(t, f.queue, "/api/complaints/2/")

	res, err := f.coord.Drain(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !res.StoppedEarly || res.Attempted != 1 || res.Failed != 1 || res.Remaining != 2 {
		t.Errorf("result = %+v", res)
	}

	ctx := context.Background()
	first, _ := f.queue.Get(ctx, e1.ID)
	if first.RetryCount != 1 {
		t.Errorf("first RetryCount = %d, want 1", first.RetryCount)
	}
	second, _ := f.queue.Get(ctx, e2.ID)
	if second.RetryCount != 0 || second.LastAttemptAt != nil {
		t.Errorf("second entry touched: %+v", second)
	}
}

func TestDrain_SingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), testSyncConfig(), nil)
	enqueue(t, f.queue, "/api/complaints/1/")

	done := make(chan *Result, 1)
	go func() {
		res, _ := f.coord.Drain(context.Background(), TriggerManual)
		done <- res
	}()

	<-entered
	if !f.coord.InProgress() {
		t.Error("InProgress() = false during a pass")
	}
	if _, err := f.coord.Drain(context.Background(), TriggerManual); !errors.Is(err, ErrDrainInProgress) {
		t.Errorf("concurrent Drain error = %v, want ErrDrainInProgress", err)
	}
	close(release)

	if res := <-done; res == nil || res.Succeeded != 1 {
		t.Errorf("first pass = %+v", res)
	}
	if f.coord.InProgress() {
		t.Error("InProgress() = true after pass")
	}
}

func TestCoordinator_StartDrainsOnStartup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := testSyncConfig()
	cfg.OnStartup = true
	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), cfg, nil)
	e := enqueue(t, f.queue, "/api/complaints/1/")

	if err := f.coord.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !f.coord.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := f.queue.Get(context.Background(), e.ID)
		if got.Synced {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("entry not synced by startup drain")
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.coord.Stop()
	if f.coord.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if last := f.coord.LastResult(); last == nil || last.Trigger != TriggerStartup {
		t.Errorf("LastResult = %+v", last)
	}
}

func TestCoordinator_TriggerCoalesces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), testSyncConfig(), nil)
	f.coord.Trigger(TriggerOnline)
	f.coord.Trigger(TriggerManual)
	f.coord.Trigger(TriggerManual)

	if n := len(f.coord.pending); n != 1 {
		t.Errorf("pending triggers = %d, want 1", n)
	}
}

type listenerSet struct{ listeners []connectivity.Listener }

func (l *listenerSet) OnChange(fn connectivity.Listener) { l.listeners = append(l.listeners, fn) }

func (l *listenerSet) emit(online bool) {
	for _, fn := range l.listeners {
		fn(online)
	}
}

func TestCoordinator_DrainOnReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f := newFixture(t, srv.URL, 1000, queue.DefaultConfig(), testSyncConfig(), nil)
	n := &listenerSet{}
	f.coord.DrainOnReconnect(n)

	n.emit(false)
	if got := len(f.coord.pending); got != 0 {
		t.Fatalf("pending triggers after going offline = %d, want 0", got)
	}
	n.emit(true)
	select {
	case trig := <-f.coord.pending:
		if trig != TriggerOnline {
			t.Errorf("trigger = %q, want %q", trig, TriggerOnline)
		}
	default:
		t.Fatal("no drain requested when the upstream came back")
	}
}

func TestParseServerID(t *testing.T) {
	tests := []struct {
		body string
		want int64
	}{
		{`{"id":42}`, 42},
		{`{"data":{"id":7}}`, 7},
		{`{"success":true}`, 0},
		{`{"id":"x"}`, 0},
		{`not json`, 0},
		{``, 0},
		{`{"id":-3}`, 0},
	}
	for _, tt := range tests {
		got := parseServerID([]byte(tt.body))
		switch {
		case tt.want == 0 && got != nil:
			t.Errorf("parseServerID(%q) = %d, want nil", tt.body, *got)
		case tt.want != 0 && (got == nil || *got != tt.want):
			t.Errorf("parseServerID(%q) = %v, want %d", tt.body, got, tt.want)
		}
	}
}
