// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/solutio/internal/logging"
)

// versionKey records the cache generation that was last activated.
const versionKey = "meta|cache_version"

// versionTTL keeps the generation marker effectively forever.
const versionTTL = 10 * 365 * 24 * time.Hour

// Precache fetches every configured precache path into the static cache.
// It returns how many were stored; failures are joined into the error and do
// not stop the remaining fetches.
func (i *Interceptor) Precache(ctx context.Context) (int, error) {
	var (
		stored int
		errs   []error
	)
	for _, p := range i.config.PrecachePaths {
		if err := i.precacheOne(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("precache %s: %w", p, err))
			continue
		}
		stored++
	}
	interceptorPrecached.Add(float64(stored))

	ev := logging.Info()
	if len(errs) > 0 {
		ev = logging.Warn().Int("failed", len(errs))
	}
	ev.Int("stored", stored).Str("cache", i.config.staticCache()).Msg("Precache completed")
	return stored, errors.Join(errs...)
}

func (i *Interceptor) precacheOne(ctx context.Context, p string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.client.Resolve(p), nil)
	if err != nil {
		return err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream answered %d", resp.StatusCode)
	}
	body, complete, err := readLimited(resp.Body, i.config.MaxBodyBytes)
	if err != nil {
		return err
	}
	if !complete {
		return fmt.Errorf("body larger than %d bytes", i.config.MaxBodyBytes)
	}
	if !cacheable(resp, false) {
		return fmt.Errorf("upstream marked %s uncacheable", p)
	}
	stored := newStoredResponse(resp, req, body)
	stored.URL = p
	return i.store.SetCache(ctx, cacheKey(i.config.staticCache(), p), stored, i.config.StaticTTL)
}

// ActivateResult describes what Activate did.
type ActivateResult struct {
	Version         string `json:"version"`
	PreviousVersion string `json:"previous_version,omitempty"`
	Changed         bool   `json:"changed"`
	Pruned          int    `json:"pruned"`
}

// Activate removes response copies belonging to other cache generations and
// records the current one. Changed is true when a different generation was
// active before; the first activation is not a change.
func (i *Interceptor) Activate(ctx context.Context) (ActivateResult, error) {
	res := ActivateResult{Version: i.config.CacheVersion}

	var prev string
	found, err := i.store.GetCache(ctx, versionKey, &prev)
	if err != nil {
		return res, fmt.Errorf("read cache version: %w", err)
	}
	if found {
		res.PreviousVersion = prev
		res.Changed = prev != i.config.CacheVersion
	}

	keys, err := i.store.CacheKeys(ctx, "")
	if err != nil {
		return res, fmt.Errorf("list caches: %w", err)
	}
	stale := make(map[string]bool)
	for _, k := range keys {
		name, _, ok := strings.Cut(k, "|")
		if !ok || name == "meta" || name == i.config.staticCache() || name == i.config.dynamicCache() {
			continue
		}
		if strings.HasPrefix(name, "static-") || strings.HasPrefix(name, "dynamic-") {
			stale[name] = true
		}
	}
	for name := range stale {
		n, err := i.store.DeleteCachePrefix(ctx, name+"|")
		if err != nil {
			return res, fmt.Errorf("prune %s: %w", name, err)
		}
		res.Pruned += n
		logging.Info().Str("cache", name).Int("entries", n).Msg("Pruned old cache")
	}

	if err := i.store.SetCache(ctx, versionKey, i.config.CacheVersion, versionTTL); err != nil {
		return res, fmt.Errorf("record cache version: %w", err)
	}
	i.hot.Clear()
	return res, nil
}

// ClearCaches removes every cached response of every generation.
func (i *Interceptor) ClearCaches(ctx context.Context) (int, error) {
	total := 0
	for _, prefix := range []string{"static-", "dynamic-"} {
		n, err := i.store.DeleteCachePrefix(ctx, prefix)
		if err != nil {
			return total, err
		}
		total += n
	}
	i.hot.Clear()
	logging.Info().Int("entries", total).Msg("Response caches cleared")
	return total, nil
}
