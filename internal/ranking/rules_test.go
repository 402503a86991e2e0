package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wizenheimer/meili/internal/bitset"
	"github.com/wizenheimer/meili/internal/posting"
	"github.com/wizenheimer/meili/internal/querygraph"
)

func graphFor(words ...string) *querygraph.Graph {
	g := &querygraph.Graph{}
	for _, w := range words {
		g.Nodes = append(g.Nodes, querygraph.Node{
			Kind:  querygraph.NodeWord,
			Terms: []querygraph.Term{{Text: w, IsExact: true}},
		})
	}
	return g
}

func TestWordsRuleOrdersByMatchCount(t *testing.T) {
	idx := posting.NewIndex()
	idx.Add("quick", 1, posting.PackPosition(0, 0))
	idx.Add("brown", 1, posting.PackPosition(0, 1))
	idx.Add("quick", 2, posting.PackPosition(0, 0))

	rule := NewWordsRule(idx, graphFor("quick", "brown"))
	candidates := bitset.FromSlice([]uint32{1, 2})
	assert.NoError(t, rule.Initialize(candidates))

	first, ok := rule.NextBucket()
	assert.True(t, ok)
	assert.ElementsMatch(t, []uint32{1}, first.ToSlice())

	second, ok := rule.NextBucket()
	assert.True(t, ok)
	assert.ElementsMatch(t, []uint32{2}, second.ToSlice())

	_, ok = rule.NextBucket()
	assert.False(t, ok)
}

func TestProximityRuleOrdersByDistance(t *testing.T) {
	idx := posting.NewIndex()
	// doc 1: "quick" and "fox" adjacent (distance 1)
	idx.Add("quick", 1, posting.PackPosition(0, 0))
	idx.Add("fox", 1, posting.PackPosition(0, 1))
	// doc 2: far apart (distance 5)
	idx.Add("quick", 2, posting.PackPosition(0, 0))
	idx.Add("fox", 2, posting.PackPosition(0, 5))

	rule := NewProximityRule(idx, graphFor("quick", "fox"))
	candidates := bitset.FromSlice([]uint32{1, 2})
	assert.NoError(t, rule.Initialize(candidates))

	first, ok := rule.NextBucket()
	assert.True(t, ok)
	assert.ElementsMatch(t, []uint32{1}, first.ToSlice())
}

func TestExactnessRuleSeparatesExactFromRest(t *testing.T) {
	idx := posting.NewIndex()
	idx.Add("quick", 1, posting.PackPosition(0, 0))
	idx.Add("quikc", 2, posting.PackPosition(0, 0))

	g := &querygraph.Graph{Nodes: []querygraph.Node{
		{Kind: querygraph.NodeWord, Terms: []querygraph.Term{
			{Text: "quick", IsExact: true},
		}},
	}}
	rule := NewExactnessRule(idx, g)
	candidates := bitset.FromSlice([]uint32{1, 2})
	assert.NoError(t, rule.Initialize(candidates))

	exact, ok := rule.NextBucket()
	assert.True(t, ok)
	assert.ElementsMatch(t, []uint32{1}, exact.ToSlice())

	rest, ok := rule.NextBucket()
	assert.True(t, ok)
	assert.ElementsMatch(t, []uint32{2}, rest.ToSlice())
}
