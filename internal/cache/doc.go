// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

/*
Package cache provides a thread-safe in-memory cache with TTL support.

The gateway keeps two kinds of cached data. Durable response copies live in
the store's cache collection and survive restarts. This package holds the
short-lived ones:
  - the hot response cache in front of the durable dynamic cache, so bursts
    of identical reads while offline do not each hit BadgerDB
  - the memoised anti-forgery token used by the sync coordinator

Expired entries are removed lazily on Get and by a background sweep every
minute. Hits, misses and evictions are exported as cache_* metrics labelled
by cache name.

# Usage Example

	tokens := cache.New("csrf", 10*time.Minute)
	defer tokens.Close()

	if v, ok := tokens.Get("csrftoken"); ok {
	    return v.(string), nil
	}
*/
package cache
