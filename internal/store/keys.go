// Solutio - Offline-First Sync Gateway for Complaint Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/solutio

package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// TimestampFormat is used for created_at/updated_at. Fixed width and UTC so
// the string index sorts chronologically.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampFormat.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Key is a primary key: an integer for record collections, a string for the cache.
type Key struct {
	n     int64
	s     string
	isStr bool
}

// IntKey returns an integer key.
func IntKey(n int64) Key { return Key{n: n} }

// StringKey returns a string key.
func StringKey(s string) Key { return Key{s: s, isStr: true} }

// Int returns the integer value. It is 0 for string keys.
func (k Key) Int() int64 { return k.n }

// IsString reports whether k is a string key.
func (k Key) IsString() bool { return k.isStr }

func (k Key) String() string {
	if k.isStr {
		return k.s
	}
	return strconv.FormatInt(k.n, 10)
}

// value is the form stored in the document's key field.
func (k Key) value() interface{} {
	if k.isStr {
		return k.s
	}
	return k.n
}

const (
	tagKeyInt    byte = 0x01
	tagKeyString byte = 0x02
)

// encode returns the order-preserving byte form used in badger keys.
func (k Key) encode() []byte {
	if k.isStr {
		b := make([]byte, 0, 1+len(k.s))
		b = append(b, tagKeyString)
		return append(b, k.s...)
	}
	b := make([]byte, 9)
	b[0] = tagKeyInt
	binary.BigEndian.PutUint64(b[1:], uint64(k.n)^(1<<63))
	return b
}

func decodeKey(b []byte) (Key, error) {
	if len(b) == 0 {
		return Key{}, fmt.Errorf("empty key")
	}
	switch b[0] {
	case tagKeyInt:
		if len(b) != 9 {
			return Key{}, fmt.Errorf("integer key has %d bytes", len(b))
		}
		return IntKey(int64(binary.BigEndian.Uint64(b[1:]) ^ (1 << 63))), nil
	case tagKeyString:
		return StringKey(string(b[1:])), nil
	default:
		return Key{}, fmt.Errorf("unknown key tag 0x%02x", b[0])
	}
}

// keyFromValue converts a document's key field into a Key.
func keyFromValue(v interface{}, stringKey bool) (Key, error) {
	if stringKey {
		s, ok := v.(string)
		if !ok || s == "" {
			return Key{}, fmt.Errorf("%w: expected non-empty string key, got %T", ErrMissingKey, v)
		}
		return StringKey(s), nil
	}
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return Key{}, fmt.Errorf("%w: key %q is not an integer", ErrMissingKey, x)
		}
		return IntKey(n), nil
	case float64:
		if x != math.Trunc(x) {
			return Key{}, fmt.Errorf("%w: key %v is not an integer", ErrMissingKey, x)
		}
		return IntKey(int64(x)), nil
	case int64:
		return IntKey(x), nil
	case int:
		return IntKey(int64(x)), nil
	default:
		return Key{}, fmt.Errorf("%w: expected integer key, got %T", ErrMissingKey, v)
	}
}

// Index value type tags. The tag order defines the cross-type sort order.
const (
	tagNull   byte = 0x10
	tagFalse  byte = 0x20
	tagTrue   byte = 0x21
	tagNumber byte = 0x30
	tagString byte = 0x40
)

// encodeIndexValue returns the order-preserving, self-delimiting encoding of v.
// Objects and arrays are not indexable.
func encodeIndexValue(v interface{}) ([]byte, bool) {
	switch x := v.(type) {
	case nil:
		return []byte{tagNull}, true
	case bool:
		if x {
			return []byte{tagTrue}, true
		}
		return []byte{tagFalse}, true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, false
		}
		return encodeFloat(f), true
	case float64:
		return encodeFloat(x), true
	case float32:
		return encodeFloat(float64(x)), true
	case int:
		return encodeFloat(float64(x)), true
	case int32:
		return encodeFloat(float64(x)), true
	case int64:
		return encodeFloat(float64(x)), true
	case uint32:
		return encodeFloat(float64(x)), true
	case uint64:
		return encodeFloat(float64(x)), true
	case string:
		return encodeString(x), true
	case time.Time:
		return encodeString(FormatTimestamp(x)), true
	default:
		return nil, false
	}
}

func encodeFloat(f float64) []byte {
	if f == 0 {
		f = 0 // fold -0 into +0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	b := make([]byte, 9)
	b[0] = tagNumber
	binary.BigEndian.PutUint64(b[1:], bits)
	return b
}

// encodeString escapes 0x00 as 0x00 0xFF and terminates with 0x00 0x01.
func encodeString(s string) []byte {
	b := make([]byte, 0, len(s)+3)
	b = append(b, tagString)
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			b = append(b, 0x00, 0xFF)
			continue
		}
		b = append(b, s[i])
	}
	return append(b, 0x00, 0x01)
}

func dataPrefix(collection string) []byte {
	return []byte("d/" + collection + "/")
}

func dataKey(collection string, k Key) []byte {
	return append(dataPrefix(collection), k.encode()...)
}

func indexPrefix(collection, index string) []byte {
	return []byte("i/" + collection + "/" + index + "/")
}

func collectionIndexPrefix(collection string) []byte {
	return []byte("i/" + collection + "/")
}

func indexKey(collection, index string, encodedValue []byte, k Key) []byte {
	p := indexPrefix(collection, index)
	b := make([]byte, 0, len(p)+len(encodedValue)+10)
	b = append(b, p...)
	b = append(b, encodedValue...)
	return append(b, k.encode()...)
}

func sequenceKey(collection string) []byte {
	return []byte("s/" + collection)
}
