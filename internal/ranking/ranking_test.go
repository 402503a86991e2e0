package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wizenheimer/meili/internal/bitset"
)

type staticRule struct {
	name    string
	buckets []*bitset.Set
	idx     int
}

func (r *staticRule) Name() string { return r.name }
func (r *staticRule) Initialize(candidates *bitset.Set) error {
	r.idx = 0
	var filtered []*bitset.Set
	for _, b := range r.buckets {
		inter := bitset.Intersect(b, candidates)
		if !inter.IsEmpty() {
			filtered = append(filtered, inter)
		}
	}
	r.buckets = filtered
	return nil
}
func (r *staticRule) NextBucket() (*bitset.Set, bool) {
	if r.idx >= len(r.buckets) {
		return nil, false
	}
	b := r.buckets[r.idx]
	r.idx++
	return b, true
}

func TestChainRunOrdersAcrossRules(t *testing.T) {
	rule := &staticRule{
		name: "test",
		buckets: []*bitset.Set{
			bitset.FromSlice([]uint32{3}),
			bitset.FromSlice([]uint32{1, 2}),
		},
	}
	chain := NewChain(rule)
	candidates := bitset.FromSlice([]uint32{1, 2, 3})
	ordered, err := chain.Run(candidates, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, []uint32{3, 1, 2}, ordered)
}

func TestChainRunRespectsLimit(t *testing.T) {
	rule := &staticRule{
		name: "test",
		buckets: []*bitset.Set{
			bitset.FromSlice([]uint32{3}),
			bitset.FromSlice([]uint32{1, 2}),
		},
	}
	chain := NewChain(rule)
	candidates := bitset.FromSlice([]uint32{1, 2, 3})
	ordered, err := chain.Run(candidates, 0, 2)
	assert.NoError(t, err)
	assert.Len(t, ordered, 2)
}

func TestChainNoRulesSortsByID(t *testing.T) {
	chain := NewChain()
	candidates := bitset.FromSlice([]uint32{5, 1, 3})
	ordered, err := chain.Run(candidates, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, []uint32{1, 3, 5}, ordered)
}

func TestCutoffTokenStopsBelowThreshold(t *testing.T) {
	c := &CutoffToken{Threshold: 0.5}
	assert.False(t, c.ShouldStop(0.9))
	assert.True(t, c.ShouldStop(0.4))
	assert.True(t, c.ShouldStop(0.9)) // latched
}
