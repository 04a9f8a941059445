// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/tomtom215/solutio/internal/config"
	"github.com/tomtom215/solutio/internal/connectivity"
	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/interceptor"
	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/metrics"
	"github.com/tomtom215/solutio/internal/middleware"
	"github.com/tomtom215/solutio/internal/models"
	"github.com/tomtom215/solutio/internal/notify"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/records"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/syncer"
	"github.com/tomtom215/solutio/internal/upstream"
	ws "github.com/tomtom215/solutio/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

type staticTokens struct{}

func (staticTokens) Token(context.Context) (string, error) { return "token", nil }

// envelope mirrors models.APIResponse with Data left raw.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

type apiFixture struct {
	handler   http.Handler
	h         *Handler
	queue     *queue.Queue
	compactor *queue.Compactor
	records   *records.Service
	notify    *notify.Center
	hub       *ws.Hub
	coord     *syncer.Coordinator
	monitor   *connectivity.Monitor
	status    *atomic.Int32
	block     chan struct{}
	entered   chan struct{}
	blocking  *atomic.Bool

	// down makes the upstream drop connections without answering.
	down *atomic.Bool

	mu     sync.Mutex
	writes []string
}

type fixtureOptions struct {
	maxRetries int
	security   config.SecurityConfig
}

func newAPIFixture(t *testing.T, opts fixtureOptions) *apiFixture {
	t.Helper()
	f := &apiFixture{status: &atomic.Int32{}, block: make(chan struct{}), entered: make(chan struct{}, 1), blocking: &atomic.Bool{}, down: &atomic.Bool{}}
	f.status.Store(http.StatusOK)

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.down.Load() {
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				_ = conn.Close()
			}
			return
		}
		if r.Method != http.MethodGet {
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, r.Method+" "+r.URL.Path+" "+string(body))
			f.mu.Unlock()
		}
		if f.blocking.Load() {
			select {
			case f.entered <- struct{}{}:
			default:
			}
			<-f.block
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(f.status.Load()))
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{"ok":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":501}`)
	}))
	t.Cleanup(up.Close)

	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	qcfg := queue.DefaultConfig()
	if opts.maxRetries > 0 {
		qcfg.MaxRetries = opts.maxRetries
	}
	q, err := queue.New(st, qcfg)
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	client, err := upstream.New("api-"+t.Name(), upstream.Config{
		BaseURL:          up.URL,
		Timeout:          2 * time.Second,
		MaxRequests:      1,
		BreakerTimeout:   time.Minute,
		FailureThreshold: 1000,
	})
	if err != nil {
		t.Fatalf("upstream.New failed: %v", err)
	}
	rs := records.New(st, q)
	comp := queue.NewCompactor(q, st)
	rec := &events.Recorder{}

	scfg := syncer.DefaultConfig()
	scfg.ReplayRate = 1000
	scfg.ReplayBurst = 10
	scfg.ReplayTimeout = 2 * time.Second
	scfg.OnStartup = false
	coord, err := syncer.New(scfg, q, rs, client, staticTokens{}, rec)
	if err != nil {
		t.Fatalf("syncer.New failed: %v", err)
	}

	mon, err := connectivity.New(connectivity.Config{
		HealthURL:     up.URL,
		ProbeInterval: time.Second,
		ProbeTimeout:  time.Second,
	}, rec)
	if err != nil {
		t.Fatalf("connectivity.New failed: %v", err)
	}
	client.SetReporter(mon)
	coord.DrainOnReconnect(mon)

	ic, err := interceptor.New(interceptor.DefaultConfig(), client, st, q, rs, rec)
	if err != nil {
		t.Fatalf("interceptor.New failed: %v", err)
	}
	t.Cleanup(ic.Close)

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	center, err := notify.New(notify.DefaultConfig(), hub)
	if err != nil {
		t.Fatalf("notify.New failed: %v", err)
	}
	t.Cleanup(center.Close)

	sec := opts.security
	if sec.RateLimitReqs == 0 {
		sec.RateLimitDisabled = true
	}
	cfg := &config.Config{Security: sec}

	h := NewHandler(Deps{
		Config:      cfg,
		Version:     "test",
		Store:       st,
		Queue:       q,
		Compactor:   comp,
		Records:     rs,
		Syncer:      coord,
		Monitor:     mon,
		Client:      client,
		Interceptor: ic,
		Notify:      center,
		Hub:         hub,
		Perf:        middleware.NewPerformanceMonitor(100, time.Second),
	})
	f.h = h
	f.handler = NewRouter(h, NewChiMiddlewareFromConfig(sec)).Setup()
	f.queue = q
	f.compactor = comp
	f.records = rs
	f.notify = center
	f.hub = hub
	f.coord = coord
	f.monitor = mon
	return f
}

// upstreamWrites returns the non-GET requests the upstream answered.
func (f *apiFixture) upstreamWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *apiFixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") && strings.HasPrefix(target, ControlPrefix) {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, target, rr.Body.String(), err)
		}
	}
	return rr, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func enqueue(t *testing.T, q *queue.Queue) *queue.Entry {
	t.Helper()
	e, err := q.Enqueue(context.Background(), queue.Request{
		Action:    queue.ActionUpdate,
		Model:     models.ModelComplaints,
		TargetURL: "/api/complaints/7/",
		Method:    http.MethodPatch,
		Headers:   map[string]string{"Content-Type": "application/json", "Cookie": "sessionid=secret"},
		Body:      []byte(`{"status":"closed"}`),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return e
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	rr, env := f.do(t, http.MethodGet, "/_offline/health", "")

	if rr.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("status = %d %q, body %s", rr.Code, env.Status, rr.Body.String())
	}
	var hs HealthStatus
	decodeData(t, env, &hs)
	if hs.Status != "healthy" || !hs.Online || hs.Version != "test" {
		t.Errorf("health = %+v", hs)
	}

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	if got := getGaugeValue(metrics.AppUptime); got != hs.UptimeSeconds {
		t.Errorf("app_uptime_seconds = %v, want %v", got, hs.UptimeSeconds)
	}
}

// getGaugeValue extracts the value from a Prometheus gauge
func getGaugeValue(gauge prometheus.Gauge) float64 {
	var m io_prometheus_client.Metric
	if err := gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func TestStatus(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	enqueue(t, f.queue)

	rr, env := f.do(t, http.MethodGet, "/_offline/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var gs GatewayStatus
	decodeData(t, env, &gs)
	if gs.Queue.Pending != 1 || !gs.Online || gs.Breaker != "closed" || gs.Syncing {
		t.Errorf("status = %+v", gs)
	}
	if gs.LastDrain != nil {
		t.Errorf("LastDrain = %+v, want nil before any pass", gs.LastDrain)
	}
}

func TestSync_DrainsQueue(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	enqueue(t, f.queue)
	enqueue(t, f.queue)

	rr, env := f.do(t, http.MethodPost, "/_offline/sync", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var res syncer.Result
	decodeData(t, env, &res)
	if res.Trigger != syncer.TriggerManual || res.Succeeded != 2 || res.Remaining != 0 {
		t.Errorf("result = %+v", res)
	}

	_, env = f.do(t, http.MethodGet, "/_offline/status", "")
	var gs GatewayStatus
	decodeData(t, env, &gs)
	if gs.LastDrain == nil || gs.LastDrain.Succeeded != 2 {
		t.Errorf("LastDrain = %+v", gs.LastDrain)
	}
}

func TestOfflineWriteReplayedOnReconnect(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	ctx := context.Background()
	f.down.Store(true)

	body := `{"title":"Broken light","description":"Street light out on 5th"}`
	req := httptest.NewRequest(http.MethodPost, "/api/complaints/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	var queued models.OfflineResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &queued); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	if queued.Success || !queued.Offline || queued.QueueID == 0 || queued.LocalID == 0 {
		t.Fatalf("offline write response = %+v", queued)
	}
	if f.monitor.Online() {
		t.Fatal("gateway still online after the upstream dropped the connection")
	}

	if err := f.coord.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(f.coord.Stop)

	f.down.Store(false)
	if !f.monitor.Probe(ctx) {
		t.Fatal("probe failed after the upstream came back")
	}

	var entry *queue.Entry
	deadline := time.Now().Add(5 * time.Second)
	for {
		var err error
		entry, err = f.queue.Get(ctx, queued.QueueID)
		if err != nil {
			t.Fatalf("queue.Get failed: %v", err)
		}
		if entry.Synced || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !entry.Synced || entry.ServerID == nil || *entry.ServerID != 501 {
		t.Fatalf("entry after reconnect = %+v", entry)
	}
	if res := f.coord.LastResult(); res == nil || res.Trigger != syncer.TriggerOnline {
		t.Errorf("last drain = %+v, want one started by the reconnect", res)
	}

	writes := f.upstreamWrites()
	if want := "POST /api/complaints/ " + body; len(writes) != 1 || writes[0] != want {
		t.Errorf("upstream writes = %q, want [%q]", writes, want)
	}

	rec, err := f.records.Get(ctx, models.ModelComplaints, 501)
	if err != nil {
		t.Fatalf("record not remapped to server id: %v", err)
	}
	meta := rec.Meta()
	if meta.SyncStatus != models.SyncSynced || meta.IsOffline || meta.LocalID != queued.LocalID {
		t.Errorf("remapped record meta = %+v", meta)
	}
	if queued.LocalID != 501 {
		if _, err := f.records.Get(ctx, models.ModelComplaints, queued.LocalID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("record still stored under local id: %v", err)
		}
	}
}

func TestSync_Async(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	rr, env := f.do(t, http.MethodPost, "/_offline/sync?async=true", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	var got map[string]bool
	decodeData(t, env, &got)
	if !got["scheduled"] {
		t.Errorf("data = %s", env.Data)
	}
}

func TestSync_InProgress(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	enqueue(t, f.queue)
	f.blocking.Store(true)

	first := make(chan int, 1)
	go func() {
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/_offline/sync", nil))
		first <- rr.Code
	}()

	select {
	case <-f.entered:
	case <-time.After(5 * time.Second):
		close(f.block)
		t.Fatal("first drain never reached the upstream")
	}

	rr, env := f.do(t, http.MethodPost, "/_offline/sync", "")
	close(f.block)
	if rr.Code != http.StatusConflict || env.Error == nil || env.Error.Code != "SYNC_IN_PROGRESS" {
		t.Errorf("second sync = %d %+v", rr.Code, env.Error)
	}
	if code := <-first; code != http.StatusOK {
		t.Errorf("first sync = %d", code)
	}
}

func TestQueue_AbandonRetryDiscard(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{maxRetries: 1})
	e := enqueue(t, f.queue)
	f.status.Store(http.StatusInternalServerError)

	_, env := f.do(t, http.MethodGet, "/_offline/queue", "")
	var pending []EntryView
	decodeData(t, env, &pending)
	if len(pending) != 1 || pending[0].ID != e.ID || pending[0].PayloadBytes != len(`{"status":"closed"}`) {
		t.Fatalf("pending = %+v", pending)
	}
	if strings.Contains(string(env.Data), "sessionid") {
		t.Error("queue listing leaked stored headers")
	}

	if rr, _ := f.do(t, http.MethodPost, "/_offline/sync", ""); rr.Code != http.StatusOK {
		t.Fatalf("sync = %d", rr.Code)
	}

	_, env = f.do(t, http.MethodGet, "/_offline/queue/abandoned", "")
	var abandoned []EntryView
	decodeData(t, env, &abandoned)
	if len(abandoned) != 1 || !abandoned[0].Abandoned || env.Metadata.Count == nil || *env.Metadata.Count != 1 {
		t.Fatalf("abandoned = %+v", abandoned)
	}

	id := strconv.FormatInt(e.ID, 10)
	rr, env := f.do(t, http.MethodPost, "/_offline/queue/"+id+"/retry", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("retry = %d, body %s", rr.Code, rr.Body.String())
	}
	var requeued EntryView
	decodeData(t, env, &requeued)
	if requeued.Abandoned || requeued.MaxRetries != 2 {
		t.Errorf("requeued = %+v, want pending with max_retries 2", requeued)
	}

	if rr, env := f.do(t, http.MethodPost, "/_offline/queue/"+id+"/retry", ""); rr.Code != http.StatusConflict {
		t.Errorf("second retry = %d %+v", rr.Code, env.Error)
	}

	if rr, _ := f.do(t, http.MethodDelete, "/_offline/queue/"+id, ""); rr.Code != http.StatusOK {
		t.Errorf("discard = %d", rr.Code)
	}
	if rr, env := f.do(t, http.MethodDelete, "/_offline/queue/"+id, ""); rr.Code != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("second discard = %d %+v", rr.Code, env.Error)
	}
	if rr, _ := f.do(t, http.MethodPost, "/_offline/queue/abc/retry", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", rr.Code)
	}
}

func TestRecords(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	body := `{"title":"Broken light","description":"Street light out on 5th"}`
	created, err := f.records.CreateOffline(context.Background(), models.ModelComplaints, []byte(body), queue.Request{
		TargetURL: "/api/complaints/",
		Method:    http.MethodPost,
		Headers:   map[string]string{"Content-Type": "application/json"},
		Body:      []byte(body),
	})
	if err != nil {
		t.Fatalf("CreateOffline failed: %v", err)
	}
	id := strconv.FormatInt(created.Record.Meta().ID, 10)

	tests := []struct {
		name   string
		target string
		status int
		count  int
	}{
		{"all", "/_offline/records/complaints", http.StatusOK, 1},
		{"pending", "/_offline/records/complaints?status=pending", http.StatusOK, 1},
		{"synced", "/_offline/records/complaints?status=synced", http.StatusOK, 0},
		{"bad status", "/_offline/records/complaints?status=lost", http.StatusBadRequest, -1},
		{"unknown model", "/_offline/records/widgets", http.StatusNotFound, -1},
		{"users by status", "/_offline/records/users?status=pending", http.StatusBadRequest, -1},
		{"one", "/_offline/records/complaints/" + id, http.StatusOK, -1},
		{"missing", "/_offline/records/complaints/99999", http.StatusNotFound, -1},
		{"bad id", "/_offline/records/complaints/x", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, env := f.do(t, http.MethodGet, tt.target, "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d, body %s", rr.Code, tt.status, rr.Body.String())
			}
			if tt.count >= 0 {
				if env.Metadata.Count == nil || *env.Metadata.Count != tt.count {
					t.Errorf("count = %v, want %d", env.Metadata.Count, tt.count)
				}
			}
		})
	}
}

func TestNotifications(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})
	n := f.notify.Notify(notify.KindInfo, "hello")

	_, env := f.do(t, http.MethodGet, "/_offline/notifications", "")
	var active []notify.Notification
	decodeData(t, env, &active)
	if len(active) != 1 || active[0].ID != n.ID || active[0].Message != "hello" {
		t.Fatalf("active = %+v", active)
	}

	if rr, _ := f.do(t, http.MethodDelete, "/_offline/notifications/"+n.ID, ""); rr.Code != http.StatusOK {
		t.Errorf("dismiss = %d", rr.Code)
	}
	if rr, _ := f.do(t, http.MethodDelete, "/_offline/notifications/"+n.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second dismiss = %d", rr.Code)
	}
}

func TestPush(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"payload", `{"title":"New complaint","body":"#42 was filed"}`, http.StatusAccepted},
		{"empty uses defaults", "", http.StatusAccepted},
		{"malformed", `{"title":`, http.StatusBadRequest},
		{"too large", `{"title":"` + strings.Repeat("x", maxPushBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := f.do(t, http.MethodPost, "/_offline/push", tt.body)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d, body %s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestStatsAndClearCache(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})

	// Warm the dynamic cache through the proxy.
	if rr, _ := f.do(t, http.MethodGet, "/api/complaints/", ""); rr.Code != http.StatusOK {
		t.Fatalf("proxy = %d", rr.Code)
	}
	f.compactor.RunNow(context.Background())

	rr, env := f.do(t, http.MethodGet, "/_offline/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats = %d", rr.Code)
	}
	var gs GatewayStats
	decodeData(t, env, &gs)
	if _, ok := gs.Store.Collections[store.SyncQueue]; !ok {
		t.Errorf("collections = %v", gs.Store.Collections)
	}
	if len(gs.Routes) == 0 {
		t.Error("expected per-route stats")
	}
	if gs.Compaction == nil || gs.Compaction.LastRun.IsZero() {
		t.Errorf("last_compaction = %+v, want the manual run", gs.Compaction)
	}

	rr, env = f.do(t, http.MethodDelete, "/_offline/cache", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("clear = %d", rr.Code)
	}
	var cleared map[string]int
	decodeData(t, env, &cleared)
	if cleared["deleted"] < 1 {
		t.Errorf("deleted = %d, want the proxied response dropped", cleared["deleted"])
	}
}

func TestRouting(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{})

	tests := []struct {
		name     string
		method   string
		target   string
		status   int
		contains string
	}{
		{"unknown control endpoint", http.MethodGet, "/_offline/nope", http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", http.MethodPost, "/_offline/health", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"proxied", http.MethodGet, "/api/complaints/", http.StatusOK, `"ok":true`},
		{"prefix lookalike proxied", http.MethodGet, "/_offlinepage/", http.StatusOK, `"ok":true`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "go_goroutines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("body %q does not contain %q", rr.Body.String(), tt.contains)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{security: config.SecurityConfig{
		RateLimitReqs:   2,
		RateLimitWindow: time.Minute,
	}})

	for i := 0; i < 2; i++ {
		if rr, _ := f.do(t, http.MethodGet, "/_offline/health", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rr.Code)
		}
	}
	rr, env := f.do(t, http.MethodGet, "/_offline/health", "")
	if rr.Code != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("third request = %d %+v", rr.Code, env.Error)
	}

	// The proxy is not limited.
	if rr, _ := f.do(t, http.MethodGet, "/api/complaints/", ""); rr.Code != http.StatusOK {
		t.Errorf("proxy = %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t, fixtureOptions{security: config.SecurityConfig{
		RateLimitDisabled: true,
		CORSOrigins:       []string{"https://app.example"},
	}})

	req := httptest.NewRequest(http.MethodOptions, "/_offline/status", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", `line\x0abreak`},
		{"tab\there", `tab\x09here`},
		{"del\x7f", `del\x7f`},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
