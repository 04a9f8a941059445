// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/store"
)

// Compactor periodically removes synced entries past their retention,
// evicts expired cache entries and runs BadgerDB garbage collection.
type Compactor struct {
	queue  *Queue
	store  *store.Store
	config Config

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.Mutex
	running bool

	lastStats CompactorStats
}

// CompactorStats contains statistics about the last compaction.
type CompactorStats struct {
	LastRun       time.Time `json:"last_run"`
	SyncedPurged  int       `json:"synced_purged"`
	CacheEvicted  int       `json:"cache_evicted"`
	Duration      string    `json:"duration"`
	LastError     string    `json:"last_error,omitempty"`
	QueueSnapshot Stats     `json:"queue"`
}

// NewCompactor creates a compactor for q and the store behind it.
func NewCompactor(q *Queue, st *store.Store) *Compactor {
	return &Compactor{
		queue:  q,
		store:  st,
		config: q.Config(),
	}
}

// Start begins the background compaction loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	logging.Info().Dur("interval", c.config.CompactInterval).Msg("Queue compactor started")
	return nil
}

// Stop gracefully stops the compaction loop.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Queue compactor stopped")
}

// IsRunning returns whether the compactor is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compactor) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CompactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.compact(c.ctx)
		}
	}
}

// RunNow performs one compaction synchronously.
func (c *Compactor) RunNow(ctx context.Context) CompactorStats {
	return c.compact(ctx)
}

func (c *Compactor) compact(ctx context.Context) CompactorStats {
	start := time.Now()
	st := CompactorStats{LastRun: start}

	purged, err := c.queue.PurgeSynced(ctx, start.Add(-c.config.SyncedRetention))
	if err != nil {
		logging.Error().Err(err).Msg("Queue compaction failed to purge synced entries")
		st.LastError = err.Error()
	}
	st.SyncedPurged = purged

	evicted, err := c.store.CleanExpiredCache(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Queue compaction failed to evict expired cache entries")
		st.LastError = err.Error()
	}
	st.CacheEvicted = evicted

	if err := c.store.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Store GC error")
	}

	if qs, err := c.queue.Stats(ctx); err == nil {
		st.QueueSnapshot = qs
	}
	if _, err := c.store.Stats(ctx); err != nil {
		logging.Debug().Err(err).Msg("Failed to refresh store gauges")
	}

	duration := time.Since(start)
	st.Duration = duration.String()

	c.mu.Lock()
	c.lastStats = st
	c.mu.Unlock()

	queueCompactionsTotal.Inc()
	queueCompactionDuration.Observe(duration.Seconds())
	if purged > 0 {
		queueEntriesCompacted.Add(float64(purged))
	}

	if purged > 0 || evicted > 0 {
		logging.Info().
			Int("synced_purged", purged).
			Int("cache_evicted", evicted).
			Dur("duration", duration).
			Msg("Queue compaction removed entries")
	}
	return st
}

// GetStats returns statistics of the last compaction.
func (c *Compactor) GetStats() CompactorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStats
}
