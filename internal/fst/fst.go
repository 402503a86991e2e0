// Package fst implements §4.4: the words/prefixes lexicon as an immutable
// finite-state transducer set, built incrementally from a sorted stream
// and queried by exact membership, prefix, or Levenshtein distance (for
// typo-tolerant candidate generation, §4.10).
//
// The teacher has no FST — blaze looks words up directly in its
// map[string]*roaring.Bitmap. This package is grounded on
// github.com/blevesearch/vellum, the FST library every bleve-based
// manifest in the retrieval pack (Aman-CERP-amanmcp, nishad-srake,
// GonzoDMX-rag-anywhere) pulls in as an indirect dependency of
// blevesearch/bleve for exactly this lexicon role.
package fst

import (
	"bytes"
	"errors"
	"sort"

	"github.com/blevesearch/vellum"
	"github.com/blevesearch/vellum/levenshtein"
)

// ErrNotSorted is returned by Build when the input keys are not strictly
// increasing, which vellum's streaming builder requires.
var ErrNotSorted = errors.New("fst: keys must be sorted and unique")

// Set is an immutable sorted set of byte strings with values attached
// (the value slot carries no domain meaning here beyond presence; word
// bitmaps live in the KV store, keyed by the same bytes).
type Set struct {
	data []byte
	fst  *vellum.FST
}

// Build constructs an FST from a sorted, deduplicated list of keys. This
// is the "never requiring the full dictionary in RAM twice" streaming
// build §4.4 asks for: vellum consumes one key at a time and writes
// directly into the backing buffer.
func Build(keys [][]byte) (*Set, error) {
	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, err
	}
	var prev []byte
	for i, k := range keys {
		if i > 0 && bytes.Compare(k, prev) <= 0 {
			return nil, ErrNotSorted
		}
		if err := builder.Insert(k, uint64(i)); err != nil {
			return nil, err
		}
		prev = k
	}
	if err := builder.Close(); err != nil {
		return nil, err
	}
	f, err := vellum.Load(buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &Set{data: buf.Bytes(), fst: f}, nil
}

// Empty returns a zero-member set.
func Empty() *Set {
	s, _ := Build(nil)
	return s
}

// Load reconstructs a Set from bytes produced by Bytes(), e.g. read back
// from the words_fst/prefixes_fst database on index open.
func Load(data []byte) (*Set, error) {
	f, err := vellum.Load(data)
	if err != nil {
		return nil, err
	}
	return &Set{data: data, fst: f}, nil
}

// Bytes returns the serialized FST blob for persistence.
func (s *Set) Bytes() []byte { return s.data }

// Contains reports exact membership.
func (s *Set) Contains(key []byte) bool {
	if s == nil || s.fst == nil {
		return false
	}
	_, ok, _ := s.fst.Get(key)
	return ok
}

// Len returns the number of keys in the set.
func (s *Set) Len() int {
	if s == nil || s.fst == nil {
		return 0
	}
	return int(s.fst.Len())
}

// PrefixKeys streams every key in the set that starts with prefix, in
// sorted order. Used for prefix-docids candidate generation (§3, §4.10).
func (s *Set) PrefixKeys(prefix []byte) ([][]byte, error) {
	if s == nil || s.fst == nil {
		return nil, nil
	}
	end := prefixUpperBound(prefix)
	itr, err := s.fst.Iterator(prefix, end)
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for err == nil {
		k, _ := itr.Current()
		cp := make([]byte, len(k))
		copy(cp, k)
		out = append(out, cp)
		err = itr.Next()
	}
	if !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, err
	}
	return out, nil
}

// LevenshteinKeys streams every key within edit distance maxEdits (0, 1,
// or 2 per §4.10) of query, intersected against this set via vellum's
// Levenshtein automaton — the core of typo-tolerant candidate generation.
func (s *Set) LevenshteinKeys(query string, maxEdits uint8) ([][]byte, error) {
	if s == nil || s.fst == nil {
		return nil, nil
	}
	aut, err := levenshtein.New(query, maxEdits)
	if err != nil {
		return nil, err
	}
	itr, err := s.fst.Search(aut, nil, nil)
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for err == nil {
		k, _ := itr.Current()
		cp := make([]byte, len(k))
		copy(cp, k)
		out = append(out, cp)
		err = itr.Next()
	}
	if !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, err
	}
	return out, nil
}

// Keys materializes every member of the set in order. Only used by the
// rebuild path (§4.7e) where the whole vocabulary is already required.
func (s *Set) Keys() ([][]byte, error) {
	if s == nil || s.fst == nil {
		return nil, nil
	}
	itr, err := s.fst.Iterator(nil, nil)
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for err == nil {
		k, _ := itr.Current()
		cp := make([]byte, len(k))
		copy(cp, k)
		out = append(out, cp)
		err = itr.Next()
	}
	if !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, err
	}
	return out, nil
}

// Union rebuilds the union of multiple sets. It does not stream: every
// key of every input set is loaded into memory, deduplicated, sorted, and
// then built into a new FST.
func Union(sets ...*Set) (*Set, error) {
	merged := make(map[string]struct{})
	for _, s := range sets {
		keys, err := s.Keys()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			merged[string(k)] = struct{}{}
		}
	}
	return buildFromSet(merged)
}

// Difference rebuilds a \ b.
func Difference(a, b *Set) (*Set, error) {
	aKeys, err := a.Keys()
	if err != nil {
		return nil, err
	}
	bSet := map[string]struct{}{}
	if b != nil {
		bk, err := b.Keys()
		if err != nil {
			return nil, err
		}
		for _, k := range bk {
			bSet[string(k)] = struct{}{}
		}
	}
	merged := make(map[string]struct{})
	for _, k := range aKeys {
		if _, excluded := bSet[string(k)]; !excluded {
			merged[string(k)] = struct{}{}
		}
	}
	return buildFromSet(merged)
}

// SymmetricDifference computes keys present in exactly one of a, b — used
// by §4.7e to find which words actually changed between commits.
func SymmetricDifference(a, b *Set) ([][]byte, error) {
	aKeys, err := setOf(a)
	if err != nil {
		return nil, err
	}
	bKeys, err := setOf(b)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for k := range aKeys {
		if _, ok := bKeys[k]; !ok {
			out = append(out, []byte(k))
		}
	}
	for k := range bKeys {
		if _, ok := aKeys[k]; !ok {
			out = append(out, []byte(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out, nil
}

func setOf(s *Set) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if s == nil {
		return out, nil
	}
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		out[string(k)] = struct{}{}
	}
	return out, nil
}

func buildFromSet(m map[string]struct{}) (*Set, error) {
	keys := make([][]byte, 0, len(m))
	for k := range m {
		keys = append(keys, []byte(k))
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return Build(keys)
}

// prefixUpperBound returns the smallest key that is NOT prefixed by
// prefix, i.e. an exclusive end bound for a prefix scan.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // all 0xff: unbounded
}
