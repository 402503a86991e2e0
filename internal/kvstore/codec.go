package kvstore

import (
	"encoding/binary"
	"math"
)

// Key codecs for composite keys (§4.1: "big-endian integers for
// range-ability, length-prefixed tuples for composite keys"). Composite
// keys here are plain concatenations of fixed-width big-endian fields,
// with at most one variable-length field, appended last and unprefixed.

// PutU32 appends docid-like big-endian u32 keys, which sort numerically —
// required for prefix/range iteration over docid-keyed databases.
func PutU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// GetU32 reads back a PutU32 key.
func GetU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func PutU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func GetU16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func PutU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func GetU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// KeyBuilder concatenates fixed-width fields into one composite key. A
// variable-length field (a word or facet string) is appended raw via
// Bytes, with no length prefix, so it must be the final component;
// numeric prefixes stay range-scannable.
type KeyBuilder struct {
	buf []byte
}

func NewKey() *KeyBuilder { return &KeyBuilder{} }

func (k *KeyBuilder) U16(v uint16) *KeyBuilder {
	k.buf = append(k.buf, PutU16(v)...)
	return k
}

func (k *KeyBuilder) U32(v uint32) *KeyBuilder {
	k.buf = append(k.buf, PutU32(v)...)
	return k
}

func (k *KeyBuilder) U8(v uint8) *KeyBuilder {
	k.buf = append(k.buf, v)
	return k
}

func (k *KeyBuilder) F64(v float64) *KeyBuilder {
	k.buf = append(k.buf, PutU64(SortableF64(v))...)
	return k
}

// Bytes appends a raw byte string without length prefix — only safe as
// the final component of a key.
func (k *KeyBuilder) Bytes(b []byte) *KeyBuilder {
	k.buf = append(k.buf, b...)
	return k
}

func (k *KeyBuilder) Build() []byte { return k.buf }

// SortableF64 maps a float64 to a uint64 that preserves float ordering
// under unsigned big-endian comparison, so facet-f64 keys range-scan
// correctly (negative numbers sort before positive, -0 before +0, etc).
func SortableF64(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// SortableF64ToFloat inverts SortableF64 given the 8-byte big-endian
// encoding written by KeyBuilder.F64, used when a composite key or
// value must be decoded back for ranking/faceting.
func SortableF64ToFloat(b []byte) float64 {
	e := GetU64(b)
	var bits uint64
	if e&(1<<63) != 0 {
		bits = e &^ (1 << 63)
	} else {
		bits = ^e
	}
	return math.Float64frombits(bits)
}
