package posting

import "errors"

var (
	ErrNoPostingList = errors.New("posting: no posting list exists for token")
)

// Index is the per-shard, per-batch accumulation structure the writer's
// extract stage (§4.7b) builds before flushing word-position-docids:
// one skip list of (docid, packed-position) pairs per distinct word
// encountered in that shard. It plays the same role as the teacher's
// InvertedIndex.PostingsList, minus the document-level bitmap and BM25
// bookkeeping, which the spec's derived databases (§3) own instead.
type Index struct {
	lists map[string]*SkipList
}

func NewIndex() *Index {
	return &Index{lists: make(map[string]*SkipList)}
}

// Add records one occurrence of word at (docID, packed position).
func (idx *Index) Add(word string, docID uint32, packedOffset float64) {
	sl, ok := idx.lists[word]
	if !ok {
		sl = NewSkipList()
		idx.lists[word] = sl
	}
	sl.Insert(Position{DocumentID: float64(docID), Offset: packedOffset})
}

// Words returns every distinct word seen, for the caller to iterate when
// flushing to the KV store.
func (idx *Index) Words() []string {
	out := make([]string, 0, len(idx.lists))
	for w := range idx.lists {
		out = append(out, w)
	}
	return out
}

// List returns the skip list for a word, or (nil, false).
func (idx *Index) List(word string) (*SkipList, bool) {
	sl, ok := idx.lists[word]
	return sl, ok
}

// First, Last, Next, Previous mirror the teacher's index.go primitives
// one-for-one, now operating on this shard-local Index rather than a
// whole-corpus InvertedIndex.
func (idx *Index) First(word string) (Position, error) {
	sl, ok := idx.lists[word]
	if !ok {
		return EOFDocument, ErrNoPostingList
	}
	return sl.Head.Tower[0].Key, nil
}

func (idx *Index) Last(word string) (Position, error) {
	sl, ok := idx.lists[word]
	if !ok {
		return EOFDocument, ErrNoPostingList
	}
	return sl.Last(), nil
}

func (idx *Index) Next(word string, current Position) (Position, error) {
	if current.IsBeginning() {
		return idx.First(word)
	}
	if current.IsEnd() {
		return EOFDocument, nil
	}
	sl, ok := idx.lists[word]
	if !ok {
		return EOFDocument, ErrNoPostingList
	}
	next, _ := sl.FindGreaterThan(current)
	return next, nil
}

func (idx *Index) Previous(word string, current Position) (Position, error) {
	if current.IsEnd() {
		return idx.Last(word)
	}
	if current.IsBeginning() {
		return BOFDocument, nil
	}
	sl, ok := idx.lists[word]
	if !ok {
		return BOFDocument, ErrNoPostingList
	}
	prev, _ := sl.FindLessThan(current)
	return prev, nil
}
