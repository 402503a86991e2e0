// Package bitset wraps github.com/RoaringBitmap/roaring to give every
// derived database in the engine (word-docids, facet levels, geo-faceted
// docids, ...) the same compressed sorted-integer set algebra.
//
// The teacher (wizenheimer/blaze) keeps a bare map[string]*roaring.Bitmap
// on InvertedIndex and calls roaring.And/Or/AndNot directly at call sites;
// here the operations are centralized so every database in the store uses
// identical clone/mutate discipline and the same on-disk encoding.
package bitset

import (
	"bytes"

	"github.com/RoaringBitmap/roaring"
)

// Set is a compressed sorted set of u32 document ids.
type Set struct {
	bm *roaring.Bitmap
}

// New returns an empty set.
func New() *Set {
	return &Set{bm: roaring.NewBitmap()}
}

// FromSlice builds a set from a slice of docids.
func FromSlice(ids []uint32) *Set {
	return &Set{bm: roaring.BitmapOf(ids...)}
}

// Add inserts a docid.
func (s *Set) Add(id uint32) { s.bm.Add(id) }

// Remove deletes a docid, no-op if absent.
func (s *Set) Remove(id uint32) { s.bm.Remove(id) }

// Contains reports whether id is a member.
func (s *Set) Contains(id uint32) bool { return s.bm.Contains(id) }

// Len returns the cardinality.
func (s *Set) Len() uint64 { return s.bm.GetCardinality() }

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool { return s.bm.IsEmpty() }

// Clone returns an independent copy.
func (s *Set) Clone() *Set { return &Set{bm: s.bm.Clone()} }

// ToSlice returns members in sorted order.
func (s *Set) ToSlice() []uint32 { return s.bm.ToArray() }

// Iterator returns a sorted-order iterator.
func (s *Set) Iterator() roaring.IntIterable { return s.bm.Iterator() }

// Union returns a new set holding the union of all inputs.
func Union(sets ...*Set) *Set {
	bms := make([]*roaring.Bitmap, len(sets))
	for i, s := range sets {
		bms[i] = s.bm
	}
	return &Set{bm: roaring.FastOr(bms...)}
}

// Intersect returns the intersection of a and b.
func Intersect(a, b *Set) *Set {
	return &Set{bm: roaring.And(a.bm, b.bm)}
}

// Difference returns a \ b.
func Difference(a, b *Set) *Set {
	return &Set{bm: roaring.AndNot(a.bm, b.bm)}
}

// SymmetricDifference returns the docids in exactly one of a, b.
func SymmetricDifference(a, b *Set) *Set {
	return &Set{bm: roaring.Xor(a.bm, b.bm)}
}

// IntersectionCardinality returns |a ∩ b| without materializing it.
func IntersectionCardinality(a, b *Set) uint64 {
	return a.bm.AndCardinality(b.bm)
}

// Equals reports structural equality.
func Equals(a, b *Set) bool { return a.bm.Equals(b.bm) }

// MarshalBinary serializes the set using roaring's stable container format,
// the encoding stored as the value of every docid database entry.
func (s *Set) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.bm.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary reconstructs a set previously produced by MarshalBinary.
func (s *Set) UnmarshalBinary(data []byte) error {
	bm := roaring.NewBitmap()
	if _, err := bm.ReadFrom(bytes.NewReader(data)); err != nil {
		return err
	}
	s.bm = bm
	return nil
}

// Decode is a convenience constructor around UnmarshalBinary.
func Decode(data []byte) (*Set, error) {
	s := New()
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}
