package ranking

import (
	"sort"

	"github.com/wizenheimer/meili/internal/bitset"
	"github.com/wizenheimer/meili/internal/posting"
	"github.com/wizenheimer/meili/internal/querygraph"
)

// WordsRule buckets candidates by how many of the query's words they
// matched at all, most-words-first (§4.11 "Words").
type WordsRule struct {
	index     *posting.Index
	terms     []string // one representative term per query-graph position
	remaining []int    // bucket keys (word-match counts) left to emit, descending
	byCount   map[int]*bitset.Set
}

func NewWordsRule(idx *posting.Index, graph *querygraph.Graph) *WordsRule {
	var terms []string
	for _, n := range graph.Nodes {
		switch n.Kind {
		case querygraph.NodeWord:
			if len(n.Terms) > 0 {
				terms = append(terms, n.Terms[0].Text)
			}
		case querygraph.NodePhrase:
			terms = append(terms, n.Phrase...)
		}
	}
	return &WordsRule{index: idx, terms: terms}
}

func (r *WordsRule) Name() string { return "words" }

func (r *WordsRule) Initialize(candidates *bitset.Set) error {
	counts := make(map[uint32]int)
	for _, term := range r.terms {
		sl, ok := r.index.List(term)
		if !ok {
			continue
		}
		counted := make(map[uint32]bool)
		for _, pos := range sl.All() {
			docID := uint32(pos.DocumentID)
			if candidates.Contains(docID) && !counted[docID] {
				counted[docID] = true
				counts[docID]++
			}
		}
	}
	r.byCount = make(map[int]*bitset.Set)
	seen := bitset.New()
	for doc, n := range counts {
		if r.byCount[n] == nil {
			r.byCount[n] = bitset.New()
		}
		r.byCount[n].Add(doc)
		seen.Add(doc)
	}
	// Documents matching zero query words still belong in the lowest
	// bucket rather than being dropped (the Words rule narrows order,
	// it doesn't filter — that's the caller's responsibility via the
	// initial candidate set already being word-filtered upstream).
	zero := bitset.Difference(candidates, seen)
	if !zero.IsEmpty() {
		r.byCount[0] = zero
	}
	var keys []int
	for k := range r.byCount {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	r.remaining = keys
	return nil
}

func (r *WordsRule) NextBucket() (*bitset.Set, bool) {
	if len(r.remaining) == 0 {
		return nil, false
	}
	k := r.remaining[0]
	r.remaining = r.remaining[1:]
	return r.byCount[k], true
}

// TypoRule buckets by typo cost, fewest typos first (§4.11 "Typo"). A
// candidate's cost is the lowest TypoCost among the query terms it
// contains; costs are not summed across query words. Candidates that
// contain none of the terms come last.
type TypoRule struct {
	costByTerm map[string]uint8 // term -> typo cost, 0 for exact/synonym/prefix
	index      *posting.Index
	remaining  []int
	byCost     map[int]*bitset.Set
}

func NewTypoRule(idx *posting.Index, graph *querygraph.Graph) *TypoRule {
	costs := make(map[string]uint8)
	for _, n := range graph.Nodes {
		if n.Kind != querygraph.NodeWord {
			continue
		}
		for _, t := range n.Terms {
			if existing, ok := costs[t.Text]; !ok || t.TypoCost < existing {
				costs[t.Text] = t.TypoCost
			}
		}
	}
	return &TypoRule{costByTerm: costs, index: idx}
}

func (r *TypoRule) Name() string { return "typo" }

func (r *TypoRule) Initialize(candidates *bitset.Set) error {
	best := make(map[uint32]int)
	for term, cost := range r.costByTerm {
		sl, ok := r.index.List(term)
		if !ok {
			continue
		}
		for _, pos := range sl.All() {
			doc := uint32(pos.DocumentID)
			if !candidates.Contains(doc) {
				continue
			}
			if existing, seen := best[doc]; !seen || int(cost) < existing {
				best[doc] = int(cost)
			}
		}
	}
	r.byCost = make(map[int]*bitset.Set)
	assigned := bitset.New()
	for doc, cost := range best {
		if r.byCost[cost] == nil {
			r.byCost[cost] = bitset.New()
		}
		r.byCost[cost].Add(doc)
		assigned.Add(doc)
	}
	rest := bitset.Difference(candidates, assigned)
	if !rest.IsEmpty() {
		r.byCost[99] = rest
	}
	var keys []int
	for k := range r.byCost {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	r.remaining = keys
	return nil
}

func (r *TypoRule) NextBucket() (*bitset.Set, bool) {
	if len(r.remaining) == 0 {
		return nil, false
	}
	k := r.remaining[0]
	r.remaining = r.remaining[1:]
	return r.byCost[k], true
}

// ProximityRule buckets by the smallest span of a cover holding every
// query term (for two terms, their distance), closest first (§4.11
// "Proximity"), built atop the Index's
// NextCover primitive (adapted from the teacher's search.go).
type ProximityRule struct {
	index     *posting.Index
	terms     []string
	remaining []int
	byDist    map[int]*bitset.Set
}

func NewProximityRule(idx *posting.Index, graph *querygraph.Graph) *ProximityRule {
	var terms []string
	for _, n := range graph.Nodes {
		if n.Kind == querygraph.NodeWord && len(n.Terms) > 0 {
			terms = append(terms, n.Terms[0].Text)
		}
	}
	return &ProximityRule{index: idx, terms: terms}
}

func (r *ProximityRule) Name() string { return "proximity" }

const maxTrackedProximity = 8

func (r *ProximityRule) Initialize(candidates *bitset.Set) error {
	r.byDist = make(map[int]*bitset.Set)
	if len(r.terms) < 2 {
		r.byDist[0] = candidates.Clone()
		r.remaining = []int{0}
		return nil
	}
	best := make(map[uint32]int)
	current := posting.BOFDocument
	for {
		cover := r.index.NextCover(r.terms, current)
		start, end := cover[0], cover[1]
		if start.IsEnd() {
			break
		}
		doc := uint32(start.DocumentID)
		if candidates.Contains(doc) {
			dist := int(end.GetOffset() - start.GetOffset())
			if dist > maxTrackedProximity {
				dist = maxTrackedProximity
			}
			if existing, seen := best[doc]; !seen || dist < existing {
				best[doc] = dist
			}
		}
		current, _ = r.index.Next(r.terms[0], start)
	}
	assigned := bitset.New()
	for doc, dist := range best {
		if r.byDist[dist] == nil {
			r.byDist[dist] = bitset.New()
		}
		r.byDist[dist].Add(doc)
		assigned.Add(doc)
	}
	rest := bitset.Difference(candidates, assigned)
	if !rest.IsEmpty() {
		r.byDist[maxTrackedProximity+1] = rest
	}
	var keys []int
	for k := range r.byDist {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	r.remaining = keys
	return nil
}

func (r *ProximityRule) NextBucket() (*bitset.Set, bool) {
	if len(r.remaining) == 0 {
		return nil, false
	}
	k := r.remaining[0]
	r.remaining = r.remaining[1:]
	return r.byDist[k], true
}

// AttributeRule buckets by the rank of the searchable attribute the
// best match occurred in, following the configured searchableAttributes
// order (§4.11 "Attribute").
type AttributeRule struct {
	fieldRank map[uint16]int // lower is better
	index     *posting.Index
	terms     []string
	remaining []int
	byRank    map[int]*bitset.Set
}

func NewAttributeRule(idx *posting.Index, graph *querygraph.Graph, fieldRank map[uint16]int) *AttributeRule {
	var terms []string
	for _, n := range graph.Nodes {
		if n.Kind == querygraph.NodeWord && len(n.Terms) > 0 {
			terms = append(terms, n.Terms[0].Text)
		}
	}
	return &AttributeRule{index: idx, terms: terms, fieldRank: fieldRank}
}

func (r *AttributeRule) Name() string { return "attribute" }

func (r *AttributeRule) Initialize(candidates *bitset.Set) error {
	best := make(map[uint32]int)
	for _, term := range r.terms {
		sl, ok := r.index.List(term)
		if !ok {
			continue
		}
		for _, pos := range sl.All() {
			doc := uint32(pos.DocumentID)
			if !candidates.Contains(doc) {
				continue
			}
			rank, ok := r.fieldRank[pos.FieldID()]
			if !ok {
				rank = len(r.fieldRank)
			}
			if existing, seen := best[doc]; !seen || rank < existing {
				best[doc] = rank
			}
		}
	}
	r.byRank = make(map[int]*bitset.Set)
	assigned := bitset.New()
	for doc, rank := range best {
		if r.byRank[rank] == nil {
			r.byRank[rank] = bitset.New()
		}
		r.byRank[rank].Add(doc)
		assigned.Add(doc)
	}
	rest := bitset.Difference(candidates, assigned)
	if !rest.IsEmpty() {
		r.byRank[len(r.fieldRank)+1] = rest
	}
	var keys []int
	for k := range r.byRank {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	r.remaining = keys
	return nil
}

func (r *AttributeRule) NextBucket() (*bitset.Set, bool) {
	if len(r.remaining) == 0 {
		return nil, false
	}
	k := r.remaining[0]
	r.remaining = r.remaining[1:]
	return r.byRank[k], true
}

// SortRule buckets by a configured sort criterion's value (§4.11
// "Sort"), ascending or descending. Values come from the caller
// (resolved via the facet numeric tree for the sort field).
type SortRule struct {
	values    map[uint32]float64
	ascending bool
	remaining []float64
	byValue   map[float64]*bitset.Set
}

func NewSortRule(values map[uint32]float64, ascending bool) *SortRule {
	return &SortRule{values: values, ascending: ascending}
}

func (r *SortRule) Name() string { return "sort" }

func (r *SortRule) Initialize(candidates *bitset.Set) error {
	r.byValue = make(map[float64]*bitset.Set)
	for _, doc := range candidates.ToSlice() {
		v := r.values[doc]
		if r.byValue[v] == nil {
			r.byValue[v] = bitset.New()
		}
		r.byValue[v].Add(doc)
	}
	var keys []float64
	for k := range r.byValue {
		keys = append(keys, k)
	}
	if r.ascending {
		sort.Float64s(keys)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(keys)))
	}
	r.remaining = keys
	return nil
}

func (r *SortRule) NextBucket() (*bitset.Set, bool) {
	if len(r.remaining) == 0 {
		return nil, false
	}
	k := r.remaining[0]
	r.remaining = r.remaining[1:]
	return r.byValue[k], true
}

// ExactnessRule buckets by whether matched terms were exact-word
// matches vs prefix/typo/synonym matches (§4.11 "Exactness").
type ExactnessRule struct {
	index     *posting.Index
	exactTerms []string
	remaining []int
	buckets   map[int]*bitset.Set
}

func NewExactnessRule(idx *posting.Index, graph *querygraph.Graph) *ExactnessRule {
	var exact []string
	for _, n := range graph.Nodes {
		if n.Kind == querygraph.NodeWord {
			for _, t := range n.Terms {
				if t.IsExact {
					exact = append(exact, t.Text)
				}
			}
		}
	}
	return &ExactnessRule{index: idx, exactTerms: exact}
}

func (r *ExactnessRule) Name() string { return "exactness" }

func (r *ExactnessRule) Initialize(candidates *bitset.Set) error {
	exactDocs := bitset.New()
	for _, term := range r.exactTerms {
		sl, ok := r.index.List(term)
		if !ok {
			continue
		}
		for _, pos := range sl.All() {
			exactDocs.Add(uint32(pos.DocumentID))
		}
	}
	exactDocs = bitset.Intersect(exactDocs, candidates)
	rest := bitset.Difference(candidates, exactDocs)
	r.buckets = map[int]*bitset.Set{0: exactDocs, 1: rest}
	r.remaining = []int{0, 1}
	return nil
}

func (r *ExactnessRule) NextBucket() (*bitset.Set, bool) {
	if len(r.remaining) == 0 {
		return nil, false
	}
	k := r.remaining[0]
	r.remaining = r.remaining[1:]
	return r.buckets[k], true
}

// GeoRule buckets by distance from a reference point, closest first
// (§4.11 "Geo"), mirroring SortRule's shape but over haversine distance
// values supplied by the caller.
type GeoRule struct {
	*SortRule
}

func NewGeoRule(distances map[uint32]float64) *GeoRule {
	return &GeoRule{SortRule: NewSortRule(distances, true)}
}

func (r *GeoRule) Name() string { return "geo" }
