// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package syncer drains the mutation queue against the upstream.
//
// Drain passes are single-flight: a pass requested while another runs either
// fails fast (Drain) or is coalesced into one follow-up pass (Trigger).
// Entries are replayed one at a time in insertion order; one entry's failure
// never blocks the rest.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/records"
	"github.com/tomtom215/solutio/internal/upstream"
)

// Trigger names what started a drain pass.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerOnline   Trigger = "online"
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
)

// ErrDrainInProgress is returned by Drain while another pass runs.
var ErrDrainInProgress = errors.New("drain already in progress")

// ReplayError is a replay the upstream answered with a non-2xx status.
type ReplayError struct {
	StatusCode int
	Body       string
}

func (e *ReplayError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("replay rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("replay rejected with status %d: %s", e.StatusCode, e.Body)
}

// MetricLabel names the error class for metrics.
func (e *ReplayError) MetricLabel() string { return "replay_status" }

// Result summarizes one drain pass.
type Result struct {
	Trigger      Trigger   `json:"trigger"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Duration     string    `json:"duration"`
	Attempted    int       `json:"attempted"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Abandoned    int       `json:"abandoned"`
	Remaining    int       `json:"remaining"`
	StoppedEarly bool      `json:"stopped_early,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Coordinator replays queued mutations.
type Coordinator struct {
	config    Config
	queue     *queue.Queue
	records   *records.Service
	client    *upstream.Client
	tokens    TokenSource
	publisher events.Publisher
	limiter   *rate.Limiter

	drainMu sync.Mutex
	pending chan Trigger

	lastMu sync.RWMutex
	last   *Result

	// Control
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New returns a coordinator. rs, tokens and pub may be nil.
func New(cfg Config, q *queue.Queue, rs *records.Service, client *upstream.Client, tokens TokenSource, pub events.Publisher) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		config:    cfg,
		queue:     q,
		records:   rs,
		client:    client,
		tokens:    tokens,
		publisher: pub,
		limiter:   rate.NewLimiter(rate.Limit(cfg.ReplayRate), cfg.ReplayBurst),
		pending:   make(chan Trigger, 1),
	}, nil
}

// LastResult returns the most recent drain result, or nil.
func (c *Coordinator) LastResult() *Result {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	if c.last == nil {
		return nil
	}
	r := *c.last
	return &r
}

// InProgress reports whether a pass is running.
func (c *Coordinator) InProgress() bool {
	if c.drainMu.TryLock() {
		c.drainMu.Unlock()
		return false
	}
	return true
}

// Trigger requests a drain pass without blocking. Requests made while one
// is already pending collapse into it. Without a running loop the request
// waits until Start.
func (c *Coordinator) Trigger(t Trigger) {
	select {
	case c.pending <- t:
		logging.Debug().Str("trigger", string(t)).Msg("Drain requested")
	default:
		logging.Debug().Str("trigger", string(t)).Msg("Drain already pending, coalesced")
	}
}

// Drain runs one pass now. It returns ErrDrainInProgress when another pass
// is running.
func (c *Coordinator) Drain(ctx context.Context, t Trigger) (*Result, error) {
	if !c.drainMu.TryLock() {
		syncDrainsTotal.WithLabelValues(string(t), "skipped").Inc()
		return nil, ErrDrainInProgress
	}
	defer c.drainMu.Unlock()
	return c.drain(ctx, t)
}

func (c *Coordinator) drain(ctx context.Context, t Trigger) (*Result, error) {
	start := time.Now()
	res := &Result{Trigger: t, StartedAt: start}
	log := logging.Ctx(ctx)

	entries, err := c.queue.PendingEntries(ctx)
	if err != nil {
		syncDrainsTotal.WithLabelValues(string(t), "error").Inc()
		res.Error = err.Error()
		c.finish(ctx, res)
		return res, fmt.Errorf("load pending entries: %w", err)
	}

	for idx := range entries {
		e := &entries[idx]
		if ctx.Err() != nil {
			res.StoppedEarly = true
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			res.StoppedEarly = true
			break
		}

		replayStart := time.Now()
		serverID, rerr := c.replay(ctx, e)
		syncReplayDuration.Observe(time.Since(replayStart).Seconds())

		if rerr != nil && ctx.Err() != nil {
			// Shutdown mid-replay is not the entry's failure.
			res.StoppedEarly = true
			break
		}
		if upstream.IsRejected(rerr) {
			// The breaker is open; nothing was sent. Leave the rest for the next pass.
			syncReplaysTotal.WithLabelValues("rejected").Inc()
			log.Warn().Int64("entry_id", e.ID).Msg("Circuit open, stopping drain pass")
			res.StoppedEarly = true
			break
		}
		res.Attempted++

		if rerr == nil {
			c.onSuccess(ctx, e, serverID, res)
			continue
		}
		c.onFailure(ctx, e, rerr, res)
	}

	if st, err := c.queue.Stats(ctx); err == nil {
		res.Remaining = int(st.Pending)
	}
	syncDrainsTotal.WithLabelValues(string(t), "completed").Inc()
	c.finish(ctx, res)

	if res.Attempted > 0 || res.StoppedEarly {
		log.Info().
			Str("trigger", string(t)).
			Int("attempted", res.Attempted).
			Int("succeeded", res.Succeeded).
			Int("failed", res.Failed).
			Int("abandoned", res.Abandoned).
			Int("remaining", res.Remaining).
			Bool("stopped_early", res.StoppedEarly).
			Msg("Drain pass completed")
	}
	return res, nil
}

func (c *Coordinator) finish(ctx context.Context, res *Result) {
	res.FinishedAt = time.Now()
	d := res.FinishedAt.Sub(res.StartedAt)
	res.Duration = d.String()
	syncDrainDuration.Observe(d.Seconds())
	syncLastDrain.Set(float64(res.FinishedAt.Unix()))

	c.lastMu.Lock()
	r := *res
	c.last = &r
	c.lastMu.Unlock()

	c.publish(ctx, events.Event{
		Type:      events.TypeDrainCompleted,
		Trigger:   string(res.Trigger),
		Attempted: res.Attempted,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Abandoned: res.Abandoned,
		Remaining: res.Remaining,
		Error:     res.Error,
	})
}

func (c *Coordinator) onSuccess(ctx context.Context, e *queue.Entry, serverID *int64, res *Result) {
	log := logging.Ctx(ctx)
	entry, err := c.queue.MarkSynced(ctx, e.ID, serverID)
	if err != nil {
		// The upstream has the write; the next pass replays it with the
		// same idempotency key.
		log.Error().Err(err).Int64("entry_id", e.ID).Msg("Failed to mark entry synced")
		res.Failed++
		return
	}
	res.Succeeded++
	syncReplaysTotal.WithLabelValues("synced").Inc()

	if c.records != nil {
		if err := c.records.OnSynced(ctx, entry, serverID); err != nil {
			log.Warn().Err(err).Int64("entry_id", e.ID).Msg("Failed to reconcile offline record")
		}
	}
	c.publish(ctx, events.Event{
		Type:      events.TypeSynced,
		EntryID:   entry.ID,
		Model:     entry.Model,
		LocalID:   entry.LocalID,
		ServerID:  serverID,
		TargetURL: entry.TargetURL,
		Method:    entry.HTTPMethod,
	})
}

func (c *Coordinator) onFailure(ctx context.Context, e *queue.Entry, cause error, res *Result) {
	log := logging.Ctx(ctx)

	var re *ReplayError
	if errors.As(cause, &re) && (re.StatusCode == http.StatusForbidden || re.StatusCode == http.StatusUnauthorized) {
		if inv, ok := c.tokens.(invalidator); ok {
			inv.Invalidate()
		}
	}

	entry, err := c.queue.RecordFailure(ctx, e.ID, cause)
	switch {
	case queue.IsRetryExhausted(err):
		res.Abandoned++
		syncReplaysTotal.WithLabelValues("abandoned").Inc()
		if c.records != nil {
			if rerr := c.records.OnAbandoned(ctx, entry); rerr != nil {
				log.Warn().Err(rerr).Int64("entry_id", e.ID).Msg("Failed to mark offline record failed")
			}
		}
		c.publish(ctx, c.entryEvent(events.TypeAbandoned, entry, cause))
		return
	case err != nil:
		log.Error().Err(err).Int64("entry_id", e.ID).Msg("Failed to record replay failure")
	default:
		log.Debug().Err(cause).Int64("entry_id", e.ID).Int("retries", entry.RetryCount).Msg("Replay failed")
	}
	res.Failed++
	syncReplaysTotal.WithLabelValues("failed").Inc()
	if entry != nil {
		c.publish(ctx, c.entryEvent(events.TypeFailed, entry, cause))
	}
}

func (c *Coordinator) entryEvent(t events.Type, e *queue.Entry, cause error) events.Event {
	return events.Event{
		Type:      t,
		EntryID:   e.ID,
		Model:     e.Model,
		LocalID:   e.LocalID,
		TargetURL: e.TargetURL,
		Method:    e.HTTPMethod,
		Retries:   e.RetryCount,
		Error:     cause.Error(),
	}
}

func (c *Coordinator) publish(ctx context.Context, ev events.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		logging.Debug().Err(err).Str("type", string(ev.Type)).Msg("Failed to publish sync event")
	}
}

// replay sends e exactly as it was recorded, plus the idempotency key and a
// fresh anti-forgery token. It returns the server-assigned id when the
// response carries one.
func (c *Coordinator) replay(ctx context.Context, e *queue.Entry) (*int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ReplayTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, e.HTTPMethod, c.client.Resolve(e.TargetURL), bytes.NewReader(e.Payload))
	if err != nil {
		return nil, err
	}
	for k, v := range e.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Idempotency-Key", e.IdempotencyKey)

	if c.tokens != nil && c.config.CSRFHeader != "" {
		tok, err := c.tokens.Token(ctx)
		switch {
		case err == nil:
			req.Header.Set(c.config.CSRFHeader, tok)
			if c.config.CSRFCookie != "" {
				req.Header.Set("Cookie", withCookie(req.Header.Get("Cookie"), c.config.CSRFCookie, tok))
			}
		case upstream.IsRejected(err):
			return nil, err
		default:
			logging.Ctx(ctx).Debug().Err(err).Msg("Replaying with the recorded anti-forgery token")
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ReplayError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return parseServerID(body), nil
}

// parseServerID extracts "id" or "data.id" from a JSON object body.
func parseServerID(body []byte) *int64 {
	if len(body) == 0 {
		return nil
	}
	var doc struct {
		ID   json.Number `json:"id"`
		Data *struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	for _, n := range []json.Number{doc.ID, dataID(doc.Data)} {
		if n == "" {
			continue
		}
		if id, err := n.Int64(); err == nil && id > 0 {
			return &id
		}
	}
	return nil
}

func dataID(d *struct {
	ID json.Number `json:"id"`
}) json.Number {
	if d == nil {
		return ""
	}
	return d.ID
}

func snippet(body []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// Start begins the drain loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	if c.config.OnStartup {
		c.Trigger(TriggerStartup)
	}

	c.wg.Add(1)
	go c.run()

	logging.Info().Dur("interval", c.config.Interval).Msg("Sync coordinator started")
	return nil
}

// Stop stops the loop and waits for an in-flight pass to end.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Sync coordinator stopped")
}

// IsRunning returns whether the loop is active.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Coordinator) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case t := <-c.pending:
			c.runPass(t)
		case <-ticker.C:
			c.runPass(TriggerPeriodic)
		}
	}
}

// runPass waits for an in-flight manual pass so triggered passes queue
// behind it instead of being dropped.
func (c *Coordinator) runPass(t Trigger) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()
	if c.ctx.Err() != nil {
		return
	}
	ctx := logging.ContextWithNewCorrelationID(c.ctx)
	if _, err := c.drain(ctx, t); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("trigger", string(t)).Msg("Drain pass failed")
	}
}
