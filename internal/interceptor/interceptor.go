// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

// Package interceptor is the gateway's reverse proxy. It classifies every
// request and answers it cache-first, network-first or by queueing the write
// for later replay when the upstream cannot take it.
package interceptor

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tomtom215/solutio/internal/cache"
	"github.com/tomtom215/solutio/internal/events"
	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/models"
	"github.com/tomtom215/solutio/internal/queue"
	"github.com/tomtom215/solutio/internal/records"
	"github.com/tomtom215/solutio/internal/store"
	"github.com/tomtom215/solutio/internal/upstream"
)

// Interceptor is an http.Handler fronting the upstream.
type Interceptor struct {
	config    Config
	client    *upstream.Client
	store     *store.Store
	queue     *queue.Queue
	records   *records.Service
	publisher events.Publisher
	hot       *cache.Cache
}

// New returns an interceptor. rs and pub may be nil.
func New(cfg Config, client *upstream.Client, st *store.Store, q *queue.Queue, rs *records.Service, pub events.Publisher) (*Interceptor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Interceptor{
		config:    cfg,
		client:    client,
		store:     st,
		queue:     q,
		records:   rs,
		publisher: pub,
		hot:       cache.New("hot", cfg.HotCacheTTL),
	}, nil
}

// Close releases the in-memory cache.
func (i *Interceptor) Close() {
	i.hot.Close()
}

// HotCacheStats summarises the in-memory response cache.
type HotCacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Keys      int64   `json:"keys"`
	HitRate   float64 `json:"hit_rate"`
}

// HotCacheStats returns hit and miss counts of the in-memory cache.
func (i *Interceptor) HotCacheStats() HotCacheStats {
	st := i.hot.GetStats()
	return HotCacheStats{
		Hits:      st.Hits,
		Misses:    st.Misses,
		Evictions: st.Evictions,
		Keys:      st.TotalKeys,
		HitRate:   i.hot.HitRate(),
	}
}

// Config returns the interceptor configuration.
func (i *Interceptor) Config() Config {
	return i.config
}

// ServeHTTP dispatches r by its class.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	class := i.config.Classify(r.Method, r.URL.Path)
	switch class {
	case ClassStatic:
		i.serveStatic(w, r)
	case ClassAPIRead:
		i.serveNetworkFirst(w, r)
	case ClassAPIWrite:
		i.serveWrite(w, r)
	default:
		i.passThrough(w, r)
	}
}

// cacheKey identifies a GET response within a named cache.
func cacheKey(cacheName, requestURI string) string {
	return cacheName + "|GET " + requestURI
}

// newUpstreamRequest builds the outbound copy of r. A nil body forwards
// r.Body as is.
func (i *Interceptor) newUpstreamRequest(ctx context.Context, r *http.Request, body []byte) (*http.Request, error) {
	var (
		rd     io.Reader
		length int64
	)
	switch {
	case body != nil:
		rd, length = bytes.NewReader(body), int64(len(body))
	case r.Body != nil && r.Body != http.NoBody:
		rd, length = r.Body, r.ContentLength
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, i.client.Resolve(r.URL.RequestURI()), rd)
	if err != nil {
		return nil, err
	}
	out.ContentLength = length
	copyHeader(out.Header, r.Header)
	removeHopHeaders(out.Header)
	// The transport negotiates compression itself so cached bodies are plain.
	out.Header.Del("Accept-Encoding")

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		out.Header.Set("X-Forwarded-For", ip)
	}
	out.Header.Set("X-Forwarded-Host", r.Host)
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	out.Header.Set("X-Forwarded-Proto", proto)
	return out, nil
}

// fetch sends r upstream without a body.
func (i *Interceptor) fetch(r *http.Request) (*http.Response, error) {
	out, err := i.newUpstreamRequest(r.Context(), r, []byte{})
	if err != nil {
		return nil, err
	}
	return i.client.Do(out)
}

// passThrough forwards excluded requests untouched.
func (i *Interceptor) passThrough(w http.ResponseWriter, r *http.Request) {
	out, err := i.newUpstreamRequest(r.Context(), r, nil)
	if err != nil {
		countRequest(ClassExcluded, outcomeError)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	resp, err := i.client.Do(out)
	if err != nil {
		countRequest(ClassExcluded, outcomeError)
		logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Pass-through request failed")
		writeOffline(w, http.StatusBadGateway, models.OfflineResponse{Message: "Upstream unavailable"})
		return
	}
	defer resp.Body.Close()
	countRequest(ClassExcluded, outcomeNetwork)
	relay(w, resp, nil)
}

// serveStatic is cache-first over the static cache.
func (i *Interceptor) serveStatic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := cacheKey(i.config.staticCache(), r.URL.RequestURI())

	if stored, ok := i.lookup(ctx, key); ok && stored.matches(r) {
		countRequest(ClassStatic, outcomeCacheHit)
		stored.write(w, "")
		return
	}

	resp, err := i.fetch(r)
	if err != nil {
		countRequest(ClassStatic, outcomeOfflinePage)
		i.serveOfflinePage(w, r)
		return
	}
	defer resp.Body.Close()

	countRequest(ClassStatic, outcomeNetwork)
	i.storeAndRelay(w, r, resp, i.config.staticCache(), key, i.config.StaticTTL, false)
}

// serveNetworkFirst tries the upstream and falls back to the most recent
// cached copy made for the same credentials.
func (i *Interceptor) serveNetworkFirst(w http.ResponseWriter, r *http.Request) {
	key := i.dynamicKey(r)

	resp, err := i.fetch(r)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		defer resp.Body.Close()
		countRequest(ClassAPIRead, outcomeNetwork)
		i.storeAndRelay(w, r, resp, i.config.dynamicCache(), key, i.config.DynamicTTL, sessionKey(r) != "")
		return
	}

	log := logging.Ctx(r.Context()).Debug().Str("path", r.URL.Path)
	if err != nil {
		log.Err(err).Msg("Network-first read failed, trying cache")
	} else {
		log.Int("status", resp.StatusCode).Msg("Upstream server error, trying cache")
		resp.Body.Close()
	}
	i.serveReadFallback(w, r, key)
}

func (i *Interceptor) serveReadFallback(w http.ResponseWriter, r *http.Request, key string) {
	ctx := r.Context()
	if v, ok := i.hot.Get(key); ok && v.(*StoredResponse).matches(r) {
		countRequest(ClassAPIRead, outcomeFallback)
		v.(*StoredResponse).write(w, "hit")
		return
	}
	if stored, ok := i.lookup(ctx, key); ok && stored.matches(r) {
		countRequest(ClassAPIRead, outcomeFallback)
		stored.write(w, "hit")
		return
	}
	// Precached pages live in the static cache.
	if stored, ok := i.lookup(ctx, cacheKey(i.config.staticCache(), r.URL.RequestURI())); ok && stored.matches(r) {
		countRequest(ClassAPIRead, outcomeFallback)
		stored.write(w, "hit")
		return
	}

	if wantsHTML(r) {
		countRequest(ClassAPIRead, outcomeOfflinePage)
		i.serveOfflinePage(w, r)
		return
	}
	countRequest(ClassAPIRead, outcomeNotFound)
	w.Header().Set(HeaderOfflineCache, "miss")
	writeOffline(w, http.StatusNotFound, models.OfflineResponse{Message: "Content not available offline"})
}

// serveOfflinePage answers with the precached offline page or the built-in one.
func (i *Interceptor) serveOfflinePage(w http.ResponseWriter, r *http.Request) {
	if i.config.OfflinePath != "" {
		if stored, ok := i.lookup(r.Context(), cacheKey(i.config.staticCache(), i.config.OfflinePath)); ok {
			w.Header().Set(HeaderOfflineCache, "offline-page")
			stored.Status = http.StatusServiceUnavailable
			stored.write(w, "")
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(HeaderOfflineCache, "offline-page")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = io.WriteString(w, builtinOfflinePage)
}

// storeAndRelay copies a cacheable 2xx response into cacheName
// (best-effort) and relays it. perSession tells whether key is private to
// the caller's credentials.
func (i *Interceptor) storeAndRelay(w http.ResponseWriter, r *http.Request, resp *http.Response, cacheName, key string, ttl time.Duration, perSession bool) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		relay(w, resp, nil)
		return
	}
	if !cacheable(resp, perSession) {
		interceptorCacheWrites.WithLabelValues(cacheName, "uncacheable").Inc()
		// Drop any earlier copy so it cannot outlive the upstream's refusal.
		i.hot.Delete(key)
		if err := i.store.DeleteCache(r.Context(), key); err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("key", key).Msg("Failed to drop stale cache copy")
		}
		relay(w, resp, nil)
		return
	}
	body, complete, err := readLimited(resp.Body, i.config.MaxBodyBytes)
	if err != nil || !complete {
		interceptorCacheWrites.WithLabelValues(cacheName, "skipped").Inc()
		relay(w, resp, body)
		return
	}

	stored := newStoredResponse(resp, r, body)
	i.put(r.Context(), cacheName, key, stored, ttl)
	relay(w, resp, body)
}

// put writes a copy to the durable cache and, for dynamic responses, the hot
// cache. Failures are logged and counted only.
func (i *Interceptor) put(ctx context.Context, cacheName, key string, stored *StoredResponse, ttl time.Duration) {
	if cacheName == i.config.dynamicCache() && i.config.HotCacheTTL > 0 {
		i.hot.Set(key, stored)
	}
	if err := i.store.SetCache(ctx, key, stored, ttl); err != nil {
		interceptorCacheWrites.WithLabelValues(cacheName, "failed").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to cache response copy")
		return
	}
	interceptorCacheWrites.WithLabelValues(cacheName, "stored").Inc()
}

// lookup reads a copy from the durable cache. Read failures count as misses.
func (i *Interceptor) lookup(ctx context.Context, key string) (*StoredResponse, bool) {
	var stored StoredResponse
	found, err := i.store.GetCache(ctx, key, &stored)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &stored, true
}
