// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

import (
	"context"
	"testing"
	"time"
)

type cachedPage struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func TestCache_SetGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetCache(ctx, "dynamic-v1|GET /api/complaints", cachedPage{Status: 200, Body: "[]"}, 0); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	var got cachedPage
	found, err := s.GetCache(ctx, "dynamic-v1|GET /api/complaints", &got)
	if err != nil || !found {
		t.Fatalf("GetCache = %v, %v", found, err)
	}
	if got.Status != 200 || got.Body != "[]" {
		t.Errorf("GetCache decoded %+v", got)
	}

	var entry CacheEntry
	if _, err := s.Get(ctx, Cache, StringKey("dynamic-v1|GET /api/complaints"), &entry); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	remaining := time.Until(time.UnixMilli(entry.Expiry))
	if remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("Default TTL gave expiry in %v, want about 1h", remaining)
	}
}

func TestCache_ExpiredIsEvicted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetCache(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var v string
	found, err := s.GetCache(ctx, "k", &v)
	if err != nil {
		t.Fatalf("GetCache failed: %v", err)
	}
	if found {
		t.Error("Expired entry reported as hit")
	}
	if n, _ := s.Count(ctx, Cache); n != 0 {
		t.Errorf("Expired entry not evicted, count = %d", n)
	}
}

func TestCache_CleanExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"old1", "old2"} {
		if err := s.SetCache(ctx, k, 1, time.Millisecond); err != nil {
			t.Fatalf("SetCache failed: %v", err)
		}
	}
	if err := s.SetCache(ctx, "fresh", 1, time.Hour); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	n, err := s.CleanExpiredCache(ctx)
	if err != nil {
		t.Fatalf("CleanExpiredCache failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Removed %d entries, want 2", n)
	}
	found, _ := s.GetCache(ctx, "fresh", nil)
	if !found {
		t.Error("Fresh entry was removed")
	}
}

func TestCache_PrefixOperations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	keys := []string{"static-v1|GET /a", "static-v1|GET /b", "static-v2|GET /a", "dynamic-v1|GET /api/x"}
	for _, k := range keys {
		if err := s.SetCache(ctx, k, k, 0); err != nil {
			t.Fatalf("SetCache failed: %v", err)
		}
	}

	got, err := s.CacheKeys(ctx, "static-v1|")
	if err != nil {
		t.Fatalf("CacheKeys failed: %v", err)
	}
	if len(got) != 2 || got[0] != "static-v1|GET /a" || got[1] != "static-v1|GET /b" {
		t.Errorf("CacheKeys = %v", got)
	}

	n, err := s.DeleteCachePrefix(ctx, "static-")
	if err != nil {
		t.Fatalf("DeleteCachePrefix failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Deleted %d, want 3", n)
	}
	all, _ := s.CacheKeys(ctx, "")
	if len(all) != 1 || all[0] != "dynamic-v1|GET /api/x" {
		t.Errorf("Remaining keys = %v", all)
	}

	if err := s.DeleteCache(ctx, "dynamic-v1|GET /api/x"); err != nil {
		t.Fatalf("DeleteCache failed: %v", err)
	}
	if c, _ := s.Count(ctx, Cache); c != 0 {
		t.Errorf("Count = %d after DeleteCache, want 0", c)
	}
}
