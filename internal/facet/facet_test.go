package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wizenheimer/meili/internal/bitset"
)

func TestTreeEquality(t *testing.T) {
	entries := []Entry{
		{Value: 10, Docids: bitset.FromSlice([]uint32{1, 2})},
		{Value: 20, Docids: bitset.FromSlice([]uint32{3})},
		{Value: 30, Docids: bitset.FromSlice([]uint32{4, 5})},
	}
	tree := Build(entries, 2, 1)
	got := tree.Equality(20)
	assert.ElementsMatch(t, []uint32{3}, got.ToSlice())
	assert.True(t, tree.Equality(999).IsEmpty())
}

func TestTreeRange(t *testing.T) {
	var entries []Entry
	for i := 1; i <= 20; i++ {
		entries = append(entries, Entry{Value: float64(i), Docids: bitset.FromSlice([]uint32{uint32(i)})})
	}
	tree := Build(entries, 4, 5)
	got := tree.Range(5, 10)
	assert.ElementsMatch(t, []uint32{5, 6, 7, 8, 9, 10}, got.ToSlice())
}

func TestTreeDistribution(t *testing.T) {
	entries := []Entry{
		{Value: 1, RawLabel: "a", Docids: bitset.FromSlice([]uint32{1, 2})},
		{Value: 2, RawLabel: "b", Docids: bitset.FromSlice([]uint32{3})},
	}
	tree := Build(entries, 4, 5)
	universe := bitset.FromSlice([]uint32{1, 2, 3})
	dist := tree.Distribution(universe, 0)
	assert.Equal(t, uint64(2), dist["a"])
	assert.Equal(t, uint64(1), dist["b"])
}
