// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// maxKeyProbes bounds how many taken ids Add skips when auto-assigning.
// Ids can be taken by documents written with an explicit key.
const maxKeyProbes = 1000

// Tx is a store transaction. It is only valid inside the Update or View
// callback that created it.
type Tx struct {
	s        *Store
	txn      *badger.Txn
	writable bool

	// inserted is the net number of documents this transaction adds.
	// Only transactions with a positive count are held to the quota.
	inserted int
}

type writeMode int

const (
	modeAdd writeMode = iota
	modePut
	modeReplace
)

// Add inserts value into collection. When the key field is absent and the
// collection auto-increments, a fresh id is assigned and written back into
// the stored document. A duplicate key or unique index value returns a
// ConstraintError.
func (tx *Tx) Add(collection string, value interface{}) (key Key, err error) {
	defer tx.wrap("add", collection, &err)
	return tx.write(collection, value, modeAdd)
}

// Put inserts or overwrites value.
func (tx *Tx) Put(collection string, value interface{}) (key Key, err error) {
	defer tx.wrap("put", collection, &err)
	return tx.write(collection, value, modePut)
}

// Replace overwrites the document with value's key. It returns ErrNotFound
// when no such document exists.
func (tx *Tx) Replace(collection string, value interface{}) (key Key, err error) {
	defer tx.wrap("replace", collection, &err)
	return tx.write(collection, value, modeReplace)
}

func (tx *Tx) write(collection string, value interface{}, mode writeMode) (Key, error) {
	if !tx.writable {
		return Key{}, badger.ErrReadOnlyTxn
	}
	sc, err := tx.s.schema(collection)
	if err != nil {
		return Key{}, err
	}
	doc, err := toDoc(value)
	if err != nil {
		return Key{}, err
	}

	var key Key
	raw, ok := doc[sc.KeyField]
	switch {
	case ok && raw != nil:
		key, err = keyFromValue(raw, sc.StringKey)
		if err != nil {
			return Key{}, err
		}
	case sc.AutoIncrement && mode != modeReplace:
		key, err = tx.assignKey(collection)
		if err != nil {
			return Key{}, err
		}
		doc[sc.KeyField] = key.value()
	default:
		return Key{}, fmt.Errorf("%w: %s requires field %q", ErrMissingKey, collection, sc.KeyField)
	}

	dk := dataKey(collection, key)
	old, err := tx.getDoc(dk)
	if err != nil {
		return Key{}, err
	}
	switch {
	case mode == modeAdd && old != nil:
		return Key{}, &ConstraintError{Collection: collection, Value: key.value()}
	case mode == modeReplace && old == nil:
		return Key{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, key)
	}

	if sc.Timestamps {
		now := FormatTimestamp(time.Now())
		switch created := doc["created_at"].(type) {
		case nil:
			if old != nil && old["created_at"] != nil {
				doc["created_at"] = old["created_at"]
			} else {
				doc["created_at"] = now
			}
		case string:
			// Normalize so the created_at index sorts chronologically.
			if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
				doc["created_at"] = FormatTimestamp(t)
			}
		}
		doc["updated_at"] = now
	}

	for _, idx := range sc.Indexes {
		if !idx.Unique {
			continue
		}
		v, ok := doc[idx.Field]
		if !ok || v == nil {
			continue
		}
		enc, ok := encodeIndexValue(v)
		if !ok {
			continue
		}
		taken, err := tx.uniqueTaken(collection, idx.Name, enc, key)
		if err != nil {
			return Key{}, err
		}
		if taken {
			return Key{}, &ConstraintError{Collection: collection, Index: idx.Name, Value: v}
		}
	}

	if old != nil {
		if err := tx.deleteIndexes(sc, old, key); err != nil {
			return Key{}, err
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if err := tx.txn.Set(dk, data); err != nil {
		return Key{}, err
	}
	if err := tx.putIndexes(sc, doc, key); err != nil {
		return Key{}, err
	}
	if old == nil {
		tx.inserted++
	}
	return key, nil
}

func (tx *Tx) assignKey(collection string) (Key, error) {
	for i := 0; i < maxKeyProbes; i++ {
		id, err := tx.s.nextID(collection)
		if err != nil {
			return Key{}, err
		}
		key := IntKey(id)
		exists, err := tx.exists(dataKey(collection, key))
		if err != nil {
			return Key{}, err
		}
		if !exists {
			return key, nil
		}
	}
	return Key{}, fmt.Errorf("no free id in %s after %d probes", collection, maxKeyProbes)
}

// Get decodes the document under key into dst and reports whether it exists.
func (tx *Tx) Get(collection string, key Key, dst interface{}) (found bool, err error) {
	defer tx.wrap("get", collection, &err)
	if _, err := tx.s.schema(collection); err != nil {
		return false, err
	}
	data, err := tx.getRaw(dataKey(collection, key))
	if err != nil || data == nil {
		return false, err
	}
	if dst == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// GetRaw returns the stored JSON under key, or nil.
func (tx *Tx) GetRaw(collection string, key Key) (raw json.RawMessage, err error) {
	defer tx.wrap("get", collection, &err)
	if _, err := tx.s.schema(collection); err != nil {
		return nil, err
	}
	return tx.getRaw(dataKey(collection, key))
}

// GetAll returns every document of the collection in primary key order, or
// with q.Index set, every document whose indexed field equals q.Value,
// ordered by primary key.
func (tx *Tx) GetAll(collection string, q Query) (docs []json.RawMessage, err error) {
	defer tx.wrap("get_all", collection, &err)
	sc, err := tx.s.schema(collection)
	if err != nil {
		return nil, err
	}
	if q.Index == "" {
		return tx.scanData(dataPrefix(collection), q.Limit)
	}
	if _, ok := sc.index(q.Index); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, q.Index)
	}
	enc, ok := encodeIndexValue(q.Value)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot be used as an index value", ErrInvalidValue, q.Value)
	}
	prefix := append(indexPrefix(collection, q.Index), enc...)
	return tx.scanIndex(collection, prefix, prefix, nil, q.Limit)
}

// Range returns documents whose indexed field lies in [lower, upper], ordered
// by index value then primary key. A nil bound is open.
func (tx *Tx) Range(collection, index string, lower, upper interface{}) (docs []json.RawMessage, err error) {
	defer tx.wrap("range", collection, &err)
	sc, err := tx.s.schema(collection)
	if err != nil {
		return nil, err
	}
	if _, ok := sc.index(index); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, index)
	}
	base := indexPrefix(collection, index)
	seek := base
	if lower != nil {
		enc, ok := encodeIndexValue(lower)
		if !ok {
			return nil, fmt.Errorf("%w: %T cannot be used as a range bound", ErrInvalidValue, lower)
		}
		seek = append(append([]byte{}, base...), enc...)
	}
	var stop []byte
	if upper != nil {
		enc, ok := encodeIndexValue(upper)
		if !ok {
			return nil, fmt.Errorf("%w: %T cannot be used as a range bound", ErrInvalidValue, upper)
		}
		stop = append(append([]byte{}, base...), enc...)
	}
	return tx.scanIndex(collection, base, seek, stop, 0)
}

// Keys returns the primary keys of a collection that start with prefix, in
// order. Only meaningful for string-keyed collections.
func (tx *Tx) Keys(collection, prefix string) (keys []Key, err error) {
	defer tx.wrap("keys", collection, &err)
	sc, err := tx.s.schema(collection)
	if err != nil {
		return nil, err
	}
	if !sc.StringKey {
		return nil, fmt.Errorf("%w: %s does not use string keys", ErrInvalidValue, collection)
	}
	base := dataPrefix(collection)
	p := append(append([]byte{}, base...), StringKey(prefix).encode()...)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = p
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		k, err := decodeKey(it.Item().Key()[len(base):])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Delete removes the document under key and its index entries.
func (tx *Tx) Delete(collection string, key Key) (err error) {
	defer tx.wrap("delete", collection, &err)
	sc, err := tx.s.schema(collection)
	if err != nil {
		return err
	}
	dk := dataKey(collection, key)
	old, err := tx.getDoc(dk)
	if err != nil || old == nil {
		return err
	}
	if err := tx.deleteIndexes(sc, old, key); err != nil {
		return err
	}
	if err := tx.txn.Delete(dk); err != nil {
		return err
	}
	tx.inserted--
	return nil
}

// Clear deletes every document of a collection inside the transaction.
func (tx *Tx) Clear(collection string) (err error) {
	defer tx.wrap("clear", collection, &err)
	if _, err := tx.s.schema(collection); err != nil {
		return err
	}
	for _, p := range [][]byte{dataPrefix(collection), collectionIndexPrefix(collection)} {
		keys, err := tx.keysWithPrefix(p)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.txn.Delete(k); err != nil {
				return err
			}
		}
		if bytes.Equal(p, dataPrefix(collection)) {
			tx.inserted -= len(keys)
		}
	}
	return nil
}

// Count returns the number of documents in a collection.
func (tx *Tx) Count(collection string) (n int64, err error) {
	defer tx.wrap("count", collection, &err)
	if _, err := tx.s.schema(collection); err != nil {
		return 0, err
	}
	p := dataPrefix(collection)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = p
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		n++
	}
	return n, nil
}

// CountWhere counts documents whose indexed field equals value without
// loading them.
func (tx *Tx) CountWhere(collection, index string, value interface{}) (n int64, err error) {
	defer tx.wrap("count_where", collection, &err)
	sc, err := tx.s.schema(collection)
	if err != nil {
		return 0, err
	}
	if _, ok := sc.index(index); !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, index)
	}
	enc, ok := encodeIndexValue(value)
	if !ok {
		return 0, fmt.Errorf("%w: %T cannot be used as an index value", ErrInvalidValue, value)
	}
	p := append(indexPrefix(collection, index), enc...)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = p
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		n++
	}
	return n, nil
}

func (tx *Tx) wrap(op, collection string, err *error) {
	*err = tx.s.wrapErr(op, collection, *err)
}

func (tx *Tx) exists(k []byte) (bool, error) {
	_, err := tx.txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (tx *Tx) getRaw(k []byte) (json.RawMessage, error) {
	item, err := tx.txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (tx *Tx) getDoc(k []byte) (map[string]interface{}, error) {
	data, err := tx.getRaw(k)
	if err != nil || data == nil {
		return nil, err
	}
	return toDoc(data)
}

func (tx *Tx) keysWithPrefix(p []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = p
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

func (tx *Tx) scanData(p []byte, limit int) ([]json.RawMessage, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = p
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var out []json.RawMessage
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// scanIndex walks index entries under prefix starting at seek. When stop is
// set, entries whose encoded value sorts after stop end the scan.
func (tx *Tx) scanIndex(collection string, prefix, seek, stop []byte, limit int) ([]json.RawMessage, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	dp := dataPrefix(collection)
	var out []json.RawMessage
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		if stop != nil {
			k := item.Key()
			if bytes.Compare(k, stop) > 0 && !bytes.HasPrefix(k, stop) {
				break
			}
		}
		pk, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		data, err := tx.getRaw(append(append([]byte{}, dp...), pk...))
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		out = append(out, data)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (tx *Tx) uniqueTaken(collection, index string, enc []byte, key Key) (bool, error) {
	p := append(indexPrefix(collection, index), enc...)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = p
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	own := key.encode()
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		pk, err := it.Item().ValueCopy(nil)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(pk, own) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *Tx) putIndexes(sc *Schema, doc map[string]interface{}, key Key) error {
	pk := key.encode()
	for _, idx := range sc.Indexes {
		v, ok := doc[idx.Field]
		if !ok {
			continue
		}
		enc, ok := encodeIndexValue(v)
		if !ok {
			continue
		}
		if err := tx.txn.Set(indexKey(sc.Name, idx.Name, enc, key), pk); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) deleteIndexes(sc *Schema, doc map[string]interface{}, key Key) error {
	for _, idx := range sc.Indexes {
		v, ok := doc[idx.Field]
		if !ok {
			continue
		}
		enc, ok := encodeIndexValue(v)
		if !ok {
			continue
		}
		if err := tx.txn.Delete(indexKey(sc.Name, idx.Name, enc, key)); err != nil {
			return err
		}
	}
	return nil
}

// toDoc normalizes value into a JSON object with numbers kept as json.Number.
func toDoc(value interface{}) (map[string]interface{}, error) {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil document", ErrInvalidValue)
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		var err error
		data, err = json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrInvalidValue)
	}
	return doc, nil
}
