// Package posting provides the position-level storage behind
// word-position-docids (§3): a per-word skip list of (docid, absolute
// position) pairs built during the writer's extract stage (§4.7b) and
// consulted by phrase/cover search (phrase.go) and the Proximity/
// Attribute ranking rules.
//
// Adapted from the teacher's skiplist.go: same probabilistic tower
// structure and Search/Insert/FindLessThan/FindGreaterThan algorithm,
// but Position here is a domain key, not a generic ordered float pair —
// its Offset field packs (field-id, in-field word offset) per §3's
// "absolute position packs (field-id, in-field offset)", and FieldID/
// InFieldOffset/NewPosition give callers that packing without reaching
// for a free-standing pack/unpack helper.
package posting

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

const MaxHeight = 32 // tower height ceiling; supports billions of postings per word

var (
	EOF = math.Inf(1)  // sorts after every real position
	BOF = math.Inf(-1) // sorts before every real position
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrNoElementFound = errors.New("no element found")
)

// Position is one (document, field, in-field offset) posting. DocumentID
// and Offset are float64 so BOF/EOF sentinels can share the same
// comparison path as real values.
//
// Offset packs (fieldID, inFieldOffset): high 32 bits are the field id,
// low 32 are the 0-indexed word offset within that field. Packing them
// into Offset rather than adding a third struct field means the skip
// list's existing (DocumentID, Offset) lexicographic ordering already
// orders postings by (doc, field, in-field position) with no extra
// comparison logic — word_position_docids wants exactly that order so a
// skip-list scan over one word visits a document's fields in a stable
// sequence.
type Position struct {
	DocumentID float64
	Offset     float64
}

var (
	BOFDocument = Position{DocumentID: BOF, Offset: BOF}
	EOFDocument = Position{DocumentID: EOF, Offset: EOF}
)

// NewPosition builds the Position for one word occurrence at docID,
// inFieldOffset words into fieldID.
func NewPosition(docID uint32, fieldID uint16, inFieldOffset int) Position {
	return Position{DocumentID: float64(docID), Offset: packOffset(fieldID, inFieldOffset)}
}

func packOffset(fieldID uint16, inFieldOffset int) float64 {
	return float64(uint64(fieldID)<<32 | uint64(uint32(inFieldOffset)))
}

func unpackOffset(packed float64) (fieldID uint16, inFieldOffset int) {
	v := uint64(packed)
	return uint16(v >> 32), int(uint32(v))
}

// PackPosition/UnpackPosition expose the same packing for callers (the
// writer's extract stage, search's attributesToSearchOn restriction)
// that build or read a packed offset directly instead of going through
// a full Position.
func PackPosition(fieldID uint16, inFieldOffset int) float64 {
	return packOffset(fieldID, inFieldOffset)
}

func UnpackPosition(packed float64) (fieldID uint16, inFieldOffset int) {
	return unpackOffset(packed)
}

// GetDocumentID returns the document id as an integer.
func (p *Position) GetDocumentID() int {
	return int(p.DocumentID)
}

// GetOffset returns the packed offset as an integer; prefer FieldID/
// InFieldOffset when the caller cares about the field split.
func (p *Position) GetOffset() int {
	return int(p.Offset)
}

// FieldID returns the field this position falls in.
func (p Position) FieldID() uint16 {
	f, _ := unpackOffset(p.Offset)
	return f
}

// InFieldOffset returns the 0-indexed word offset within FieldID's field.
func (p Position) InFieldOffset() int {
	_, o := unpackOffset(p.Offset)
	return o
}

func (p *Position) IsBeginning() bool {
	return p.Offset == BOF
}

func (p *Position) IsEnd() bool {
	return p.Offset == EOF
}

// IsBefore orders positions by (DocumentID, Offset) — and since Offset
// packs (field, in-field offset), that's also (doc, field, in-field
// position) order.
func (p *Position) IsBefore(other Position) bool {
	if p.DocumentID < other.DocumentID {
		return true
	}
	return p.DocumentID == other.DocumentID && p.Offset < other.Offset
}

func (p *Position) IsAfter(other Position) bool {
	if p.DocumentID > other.DocumentID {
		return true
	}
	return p.DocumentID == other.DocumentID && p.Offset > other.Offset
}

func (p *Position) Equals(other Position) bool {
	return p.DocumentID == other.DocumentID && p.Offset == other.Offset
}

// Node is one skip list entry: a Position key plus forward pointers at
// every level its random tower reaches.
type Node struct {
	Key   Position
	Tower [MaxHeight]*Node
}

// SkipList holds one word's postings, ordered by Position.
type SkipList struct {
	Head   *Node // sentinel; carries no Position of its own
	Height int
}

func NewSkipList() *SkipList {
	return &SkipList{
		Head:   &Node{},
		Height: 1,
	}
}

// Search walks down from the top level, returning the exact-match node
// (nil if absent) plus the per-level predecessor journey Insert/Delete/
// FindLessThan reuse.
func (sl *SkipList) Search(key Position) (*Node, [MaxHeight]*Node) {
	var journey [MaxHeight]*Node
	current := sl.Head

	for level := sl.Height - 1; level >= 0; level-- {
		current = sl.traverseLevel(current, key, level)
		journey[level] = current
	}

	next := current.Tower[0]
	if next != nil && next.Key.Equals(key) {
		return next, journey
	}
	return nil, journey
}

// traverseLevel advances along one level while the next key is still
// strictly before target, returning the last node visited.
func (sl *SkipList) traverseLevel(start *Node, target Position, level int) *Node {
	current := start
	next := current.Tower[level]
	for next != nil && sl.shouldAdvance(next.Key, target) {
		current = next
		next = current.Tower[level]
	}
	return current
}

func (sl *SkipList) shouldAdvance(nodeKey, targetKey Position) bool {
	if nodeKey.Equals(targetKey) {
		return false
	}
	return nodeKey.IsBefore(targetKey)
}

// Find reports whether key has an exact posting.
func (sl *SkipList) Find(key Position) (Position, error) {
	found, _ := sl.Search(key)
	if found == nil {
		return EOFDocument, ErrKeyNotFound
	}
	return found.Key, nil
}

// FindLessThan returns the largest posting strictly before key — used
// by phrase/cover search to walk backward from a candidate match.
func (sl *SkipList) FindLessThan(key Position) (Position, error) {
	_, journey := sl.Search(key)
	predecessor := journey[0]
	if predecessor == nil || predecessor == sl.Head {
		return BOFDocument, ErrNoElementFound
	}
	return predecessor.Key, nil
}

// FindGreaterThan returns the smallest posting strictly after key.
func (sl *SkipList) FindGreaterThan(key Position) (Position, error) {
	found, journey := sl.Search(key)

	if found != nil {
		if found.Tower[0] != nil {
			return found.Tower[0].Key, nil
		}
		return EOFDocument, ErrNoElementFound
	}

	predecessor := journey[0]
	if predecessor != nil && predecessor.Tower[0] != nil {
		return predecessor.Tower[0].Key, nil
	}
	return EOFDocument, ErrNoElementFound
}

// Insert adds key, or overwrites the existing node if key is already
// present (DocumentID+Offset equal — overwriting is a no-op in
// practice since the key carries no payload beyond itself).
func (sl *SkipList) Insert(key Position) {
	found, journey := sl.Search(key)
	if found != nil {
		found.Key = key
		return
	}

	height := sl.randomHeight()
	newNode := &Node{Key: key}
	sl.linkNode(newNode, journey, height)

	if height > sl.Height {
		sl.Height = height
	}
}

func (sl *SkipList) linkNode(node *Node, journey [MaxHeight]*Node, height int) {
	for level := 0; level < height; level++ {
		predecessor := journey[level]
		if predecessor == nil {
			predecessor = sl.Head
		}
		node.Tower[level] = predecessor.Tower[level]
		predecessor.Tower[level] = node
	}
}

// Delete removes key, reporting whether it was present.
func (sl *SkipList) Delete(key Position) bool {
	found, journey := sl.Search(key)
	if found == nil {
		return false
	}

	for level := 0; level < sl.Height; level++ {
		if journey[level].Tower[level] != found {
			break
		}
		journey[level].Tower[level] = found.Tower[level]
	}

	sl.shrink()
	return true
}

// Last returns the highest posting in the list.
func (sl *SkipList) Last() Position {
	current := sl.Head
	for next := current.Tower[0]; next != nil; next = next.Tower[0] {
		current = next
	}
	return current.Key
}

// shrink drops now-empty top levels after a deletion.
func (sl *SkipList) shrink() {
	for level := sl.Height - 1; level >= 0; level-- {
		if sl.Head.Tower[level] == nil {
			sl.Height--
		} else {
			break
		}
	}
}

// randomHeight flips a fair coin until it comes up tails, giving the
// geometric height distribution (P(height=k) = 2^-k) a skip list needs
// for its average O(log n) bound.
func (sl *SkipList) randomHeight() int {
	height := 1
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for rng.Float64() < 0.5 && height < MaxHeight {
		height++
	}
	return height
}

// Iterator walks level 0 — the only level holding every posting — in
// ascending order.
type Iterator struct {
	current *Node
}

func (sl *SkipList) Iterator() *Iterator {
	return &Iterator{current: sl.Head.Tower[0]}
}

func (it *Iterator) HasNext() bool {
	return it.current != nil && it.current.Tower[0] != nil
}

func (it *Iterator) Next() Position {
	if it.current == nil {
		return EOFDocument
	}
	it.current = it.current.Tower[0]
	if it.current == nil {
		return EOFDocument
	}
	return it.current.Key
}

// All returns every posting in ascending order. Unlike Iterator (whose
// first HasNext() checks for a *second* element), this walks from the
// head node itself so a caller that just wants every entry — matching
// attributesToSearchOn against a word's postings, say — doesn't have to
// special-case the first one.
func (sl *SkipList) All() []Position {
	var out []Position
	for n := sl.Head.Tower[0]; n != nil; n = n.Tower[0] {
		out = append(out, n.Key)
	}
	return out
}
