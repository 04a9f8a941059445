// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/solutio/internal/logging"
	"github.com/tomtom215/solutio/internal/metrics"
)

// sequenceBandwidth is how many ids a badger.Sequence leases at a time.
const sequenceBandwidth = 100

// Store is a BadgerDB-backed document store. It is safe for concurrent use.
type Store struct {
	db      *badger.DB
	config  Config
	schemas map[string]*Schema

	seqMu sync.Mutex
	seqs  map[string]*badger.Sequence

	mu     sync.RWMutex
	closed bool
}

// Query selects documents for GetAll. An empty Index means a full scan in
// primary key order.
type Query struct {
	Index string
	Value interface{}
	Limit int
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Collections map[string]int64 `json:"collections"`
	LSMBytes    int64            `json:"lsm_bytes"`
	VlogBytes   int64            `json:"vlog_bytes"`
	MaxBytes    int64            `json:"max_bytes,omitempty"`
}

// Open validates cfg and opens the store with the default schemas.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	return open(cfg, DefaultSchemas())
}

// OpenInMemory opens an in-memory store without configuration validation.
// Intended for tests.
func OpenInMemory() (*Store, error) {
	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.Path = ""
	cfg.SyncWrites = false
	return open(cfg, DefaultSchemas())
}

func open(cfg Config, schemas []Schema) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{
		db:      db,
		config:  cfg,
		schemas: make(map[string]*Schema, len(schemas)),
		seqs:    make(map[string]*badger.Sequence),
	}
	for i := range schemas {
		sc := schemas[i]
		s.schemas[sc.Name] = &sc
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Int("collections", len(schemas)).
		Msg("Store opened")
	return s, nil
}

// Close releases sequences and closes the database, bounded by CloseTimeout.
// It waits for in-flight transactions.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	s.seqMu.Lock()
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			logging.Warn().Err(err).Str("collection", name).Msg("Failed to release sequence")
		}
	}
	s.seqs = map[string]*badger.Sequence{}
	s.seqMu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// Schema returns the declared schema of a collection.
func (s *Store) Schema(collection string) (Schema, bool) {
	sc, ok := s.schemas[collection]
	if !ok {
		return Schema{}, false
	}
	return *sc, true
}

func (s *Store) schema(collection string) (*Schema, error) {
	sc, ok := s.schemas[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return sc, nil
}

// Update runs fn in a read-write transaction. If fn returns an error nothing
// is written.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, "update", "", true, fn)
}

// View runs fn in a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return s.run(ctx, "view", "", false, fn)
}

func (s *Store) run(ctx context.Context, op, collection string, write bool, fn func(tx *Tx) error) error {
	start := time.Now()
	err := s.exec(ctx, write, fn)
	var fe *fnError
	if errors.As(err, &fe) {
		// Errors returned by fn are the caller's and pass through untouched.
		err = fe.err
	} else {
		err = s.wrapErr(op, collection, err)
	}
	label := collection
	if label == "" {
		label = "tx"
	}
	metrics.RecordStoreOperation(op, label, time.Since(start), err)
	return err
}

// fnError marks an error returned by a transaction callback.
type fnError struct{ err error }

func (e *fnError) Error() string { return e.err.Error() }

func (s *Store) exec(ctx context.Context, write bool, fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	call := func(tx *Tx) error {
		if err := fn(tx); err != nil {
			return &fnError{err: err}
		}
		return nil
	}

	if !write {
		return s.db.View(func(txn *badger.Txn) error {
			return call(&Tx{s: s, txn: txn})
		})
	}

	var err error
	for attempt := 0; attempt <= s.config.ConflictRetries; attempt++ {
		if attempt > 0 {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			logging.Debug().Int("attempt", attempt).Msg("Retrying store transaction after conflict")
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			tx := &Tx{s: s, txn: txn, writable: true}
			if err := call(tx); err != nil {
				return err
			}
			// State changes and deletions stay allowed over quota so
			// synced entries can still be marked and purged.
			if tx.inserted > 0 {
				return s.checkQuota()
			}
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) checkQuota() error {
	if s.config.MaxSizeBytes <= 0 {
		return nil
	}
	lsm, vlog := s.db.Size()
	if used := lsm + vlog; used >= s.config.MaxSizeBytes {
		return &QuotaExceededError{Resource: "store", Limit: s.config.MaxSizeBytes, Used: used}
	}
	return nil
}

// nextID draws the next auto-increment id for a collection.
func (s *Store) nextID(collection string) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	seq, ok := s.seqs[collection]
	if !ok {
		var err error
		seq, err = s.db.GetSequence(sequenceKey(collection), sequenceBandwidth)
		if err != nil {
			return 0, fmt.Errorf("get sequence: %w", err)
		}
		s.seqs[collection] = seq
	}
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	// Sequences start at 0; ids start at 1.
	return int64(n) + 1, nil
}

// Add inserts value. See Tx.Add.
func (s *Store) Add(ctx context.Context, collection string, value interface{}) (Key, error) {
	var key Key
	err := s.run(ctx, "add", collection, true, func(tx *Tx) error {
		var err error
		key, err = tx.Add(collection, value)
		return err
	})
	return key, err
}

// Put inserts or overwrites value. See Tx.Put.
func (s *Store) Put(ctx context.Context, collection string, value interface{}) (Key, error) {
	var key Key
	err := s.run(ctx, "put", collection, true, func(tx *Tx) error {
		var err error
		key, err = tx.Put(collection, value)
		return err
	})
	return key, err
}

// Replace overwrites an existing document. See Tx.Replace.
func (s *Store) Replace(ctx context.Context, collection string, value interface{}) (Key, error) {
	var key Key
	err := s.run(ctx, "replace", collection, true, func(tx *Tx) error {
		var err error
		key, err = tx.Replace(collection, value)
		return err
	})
	return key, err
}

// Get decodes the document stored under key into dst.
func (s *Store) Get(ctx context.Context, collection string, key Key, dst interface{}) (bool, error) {
	var found bool
	err := s.run(ctx, "get", collection, false, func(tx *Tx) error {
		var err error
		found, err = tx.Get(collection, key, dst)
		return err
	})
	return found, err
}

// GetAll returns the raw documents selected by q.
func (s *Store) GetAll(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := s.run(ctx, "get_all", collection, false, func(tx *Tx) error {
		var err error
		out, err = tx.GetAll(collection, q)
		return err
	})
	return out, err
}

// GetAllAs is GetAll decoding each document into T.
func GetAllAs[T any](ctx context.Context, s *Store, collection string, q Query) ([]T, error) {
	raws, err := s.GetAll(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	return DecodeAll[T](raws)
}

// DecodeAll decodes raw documents into T.
func DecodeAll[T any](raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Range returns documents whose index value lies in [lower, upper]. A nil
// bound is open.
func (s *Store) Range(ctx context.Context, collection, index string, lower, upper interface{}) ([]json.RawMessage, error) {
	var out []json.RawMessage
	err := s.run(ctx, "range", collection, false, func(tx *Tx) error {
		var err error
		out, err = tx.Range(collection, index, lower, upper)
		return err
	})
	return out, err
}

// Delete removes the document under key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, collection string, key Key) error {
	return s.run(ctx, "delete", collection, true, func(tx *Tx) error {
		return tx.Delete(collection, key)
	})
}

// Clear removes every document and index entry of a collection.
func (s *Store) Clear(ctx context.Context, collection string) error {
	return s.run(ctx, "clear", collection, true, func(tx *Tx) error {
		return tx.Clear(collection)
	})
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.run(ctx, "count", collection, false, func(tx *Tx) error {
		var err error
		n, err = tx.Count(collection)
		return err
	})
	return n, err
}

// Stats counts documents per collection and reports the on-disk size. It
// also refreshes the store gauges.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Collections: make(map[string]int64, len(s.schemas)), MaxBytes: s.config.MaxSizeBytes}
	err := s.View(ctx, func(tx *Tx) error {
		for name := range s.schemas {
			n, err := tx.Count(name)
			if err != nil {
				return err
			}
			st.Collections[name] = n
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	st.LSMBytes, st.VlogBytes = s.db.Size()

	metrics.StoreSizeBytes.WithLabelValues("lsm").Set(float64(st.LSMBytes))
	metrics.StoreSizeBytes.WithLabelValues("vlog").Set(float64(st.VlogBytes))
	for name, n := range st.Collections {
		metrics.StoreCollectionObjects.WithLabelValues(name).Set(float64(n))
	}
	return st, nil
}

// RunGC rewrites value log files until nothing is left to reclaim.
func (s *Store) RunGC() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.config.InMemory {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation("gc", "all", time.Since(start), nil)
	}()

	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}
