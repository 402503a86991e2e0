// Package ranking implements §4.11: the bucketed ranking-rule chain
// (Words, Typo, Proximity, Attribute, Sort, Exactness, Geo) that
// narrows the candidate set bucket by bucket instead of scoring with
// BM25.
//
// The teacher's InvertedIndex scores every match with BM25 (see its
// index.go BM25Parameters/DocumentStats); that whole subsystem is
// dropped rather than adapted, because this spec's ranking model is
// structurally different — a chain of criteria that each partition the
// remaining candidates into ordered buckets, not a single numeric
// score. What does carry over is the position-finding machinery BM25
// sat on top of: NextCover in internal/posting (adapted from the
// teacher's search.go) is what the Proximity rule below calls to
// measure term distance; the Attribute rule reads each posting's field
// id directly.
package ranking

import (
	"sort"

	"github.com/wizenheimer/meili/internal/bitset"
)

// Rule is one link in the ranking chain. Initialize is called once per
// search with the full candidate set; NextBucket is called repeatedly,
// each time returning the next (possibly empty) ordered subset until
// the candidates are exhausted.
type Rule interface {
	Name() string
	Initialize(candidates *bitset.Set) error
	NextBucket() (*bitset.Set, bool)
}

// Candidate pairs a document id with the per-rule details accumulated
// while it moved through the chain, feeding _rankingScoreDetails.
type Candidate struct {
	DocID   uint32
	Details map[string]any
}

// Chain drives a fixed sequence of rules, splitting the candidate set
// into smaller and smaller ordered buckets (§4.11: "each rule receives
// the bucket the previous rule produced and may only reorder/filter
// within it, never introduce new documents").
type Chain struct {
	rules []Rule
}

func NewChain(rules ...Rule) *Chain {
	return &Chain{rules: rules}
}

// Run executes the chain over the initial candidate set and returns the
// ordered document ids after skipping offset of them and keeping at most
// limit (no cap when limit is 0), stopping early once limit+offset
// results have been produced if limit > 0.
func (c *Chain) Run(candidates *bitset.Set, offset, limit int) ([]uint32, error) {
	ids, _, err := c.RunWithDetails(candidates, offset, limit)
	return ids, err
}

// RunWithDetails is Run plus, per document, the normalized per-rule
// scores that fed its position (§4.11's score-product normalization):
// each rule assigns the documents in its Nth-pulled bucket a score of
// 1/(1+N), so earlier buckets score closer to 1 and a document's
// overall ranking score is the product of every rule's contribution —
// the same "each criterion multiplies in" shape _rankingScoreDetails
// documents, without requiring a rule to know its total bucket count
// up front (buckets are pulled lazily so Run can still stop early).
func (c *Chain) RunWithDetails(candidates *bitset.Set, offset, limit int) ([]uint32, map[uint32]map[string]float64, error) {
	details := make(map[uint32]map[string]float64)
	if len(c.rules) == 0 {
		ids := candidates.ToSlice()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return applyWindow(ids, offset, limit), details, nil
	}
	var ordered []uint32
	if err := c.runRule(0, candidates, &ordered, offset, limit, details); err != nil {
		return nil, nil, err
	}
	return applyWindow(ordered, offset, limit), details, nil
}

func (c *Chain) runRule(i int, bucket *bitset.Set, ordered *[]uint32, offset, limit int, details map[uint32]map[string]float64) error {
	if bucket.IsEmpty() {
		return nil
	}
	if limit > 0 && len(*ordered) >= offset+limit {
		return nil
	}
	if i >= len(c.rules) {
		ids := bucket.ToSlice()
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		*ordered = append(*ordered, ids...)
		return nil
	}
	rule := c.rules[i]
	if err := rule.Initialize(bucket); err != nil {
		return err
	}
	ordinal := 0
	for {
		sub, ok := rule.NextBucket()
		if !ok {
			return nil
		}
		if sub.IsEmpty() {
			continue
		}
		score := 1 / float64(1+ordinal)
		for _, id := range sub.ToSlice() {
			m := details[id]
			if m == nil {
				m = make(map[string]float64)
				details[id] = m
			}
			m[rule.Name()] = score
		}
		if err := c.runRule(i+1, sub, ordered, offset, limit, details); err != nil {
			return err
		}
		ordinal++
		if limit > 0 && len(*ordered) >= offset+limit {
			return nil
		}
	}
}

// ProductScore multiplies every rule's per-document score into the
// single overall ranking score (§4.11).
func ProductScore(details map[string]float64) float64 {
	if len(details) == 0 {
		return 1
	}
	score := 1.0
	for _, v := range details {
		score *= v
	}
	return score
}

func applyWindow(ids []uint32, offset, limit int) []uint32 {
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

// CutoffToken is a latch for a ranking score threshold: ShouldStop
// reports true for the first score below Threshold and for every call
// after it. Chain does not consult a CutoffToken; Search applies
// rankingScoreThreshold to each hit's ProductScore instead.
type CutoffToken struct {
	Threshold float64
	hit       bool
}

func (c *CutoffToken) ShouldStop(score float64) bool {
	if c.hit {
		return true
	}
	if score < c.Threshold {
		c.hit = true
		return true
	}
	return false
}
