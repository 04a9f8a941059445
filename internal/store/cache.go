// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// CacheEntry is a document of the cache collection.
type CacheEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Expiry    int64           `json:"expiry"` // unix milliseconds
	CreatedAt string          `json:"created_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.Expiry <= now.UnixMilli()
}

// SetCache stores value under key for ttl. A zero ttl uses Config.CacheTTL.
func (s *Store) SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.config.CacheTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	now := time.Now()
	entry := CacheEntry{
		Key:       key,
		Value:     raw,
		Expiry:    now.Add(ttl).UnixMilli(),
		CreatedAt: FormatTimestamp(now),
	}
	_, err = s.Put(ctx, Cache, &entry)
	return err
}

// GetCache decodes the cached value under key into dst. An expired entry is
// evicted and reported as a miss.
func (s *Store) GetCache(ctx context.Context, key string, dst interface{}) (bool, error) {
	var entry CacheEntry
	found, err := s.Get(ctx, Cache, StringKey(key), &entry)
	if err != nil || !found {
		return false, err
	}
	if entry.Expired(time.Now()) {
		if err := s.Delete(ctx, Cache, StringKey(key)); err != nil {
			return false, err
		}
		return false, nil
	}
	if dst != nil {
		if err := json.Unmarshal(entry.Value, dst); err != nil {
			return false, fmt.Errorf("decode cache %q: %w", key, err)
		}
	}
	return true, nil
}

// DeleteCache removes one cache entry.
func (s *Store) DeleteCache(ctx context.Context, key string) error {
	return s.Delete(ctx, Cache, StringKey(key))
}

// CleanExpiredCache deletes every entry whose expiry has passed and returns
// how many were removed.
func (s *Store) CleanExpiredCache(ctx context.Context) (int, error) {
	var n int
	err := s.run(ctx, "clean_cache", Cache, true, func(tx *Tx) error {
		raws, err := tx.Range(Cache, "expiry", nil, time.Now().UnixMilli())
		if err != nil {
			return err
		}
		entries, err := DecodeAll[CacheEntry](raws)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := tx.Delete(Cache, StringKey(e.Key)); err != nil {
				return err
			}
		}
		n = len(entries)
		return nil
	})
	return n, err
}

// CacheKeys lists cache keys starting with prefix.
func (s *Store) CacheKeys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := s.run(ctx, "cache_keys", Cache, false, func(tx *Tx) error {
		keys, err := tx.Keys(Cache, prefix)
		if err != nil {
			return err
		}
		out = make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, k.String())
		}
		return nil
	})
	return out, err
}

// DeleteCachePrefix removes every cache entry whose key starts with prefix.
func (s *Store) DeleteCachePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.run(ctx, "delete_cache_prefix", Cache, true, func(tx *Tx) error {
		keys, err := tx.Keys(Cache, prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.Delete(Cache, k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	return n, err
}
