package memcache

import "strconv"

// AsMemcachedValue is the boundary interface to the (out-of-scope)
// value-serialization collaborator: anything that knows how to render itself
// as a byte sequence can be stored. The interface is intentionally a thin
// pass-through — it carries no serialization policy of its own, only the
// handful of built-in implementations a caller reaches for most often.
type AsMemcachedValue interface {
	AsMemcachedBytes() []byte
}

// Bytes is a raw byte payload, stored and returned as-is.
type Bytes []byte

func (b Bytes) AsMemcachedBytes() []byte { return b }

// String is a text payload, stored as its UTF-8 bytes.
type String string

func (s String) AsMemcachedBytes() []byte { return []byte(s) }

// Uint64 renders an unsigned integer in base-10 ASCII, matching the decimal
// encoding the server itself uses for incr/decr counters.
type Uint64 uint64

func (u Uint64) AsMemcachedBytes() []byte { return strconv.AppendUint(nil, uint64(u), 10) }

// Uint32 renders an unsigned 32-bit integer in base-10 ASCII.
type Uint32 uint32

func (u Uint32) AsMemcachedBytes() []byte { return strconv.AppendUint(nil, uint64(u), 10) }

// valueBytes extracts the wire payload from any AsMemcachedValue, treating a
// nil value as an empty payload.
func valueBytes(v AsMemcachedValue) []byte {
	if v == nil {
		return nil
	}
	return v.AsMemcachedBytes()
}
