package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizenheimer/meili/internal/bitset"
)

type fakeEvaluator struct {
	universe *bitset.Set
	byField  map[string]*bitset.Set
}

func (f *fakeEvaluator) Universe() *bitset.Set { return f.universe }
func (f *fakeEvaluator) Eq(field, value string) (*bitset.Set, error) {
	key := field + "=" + value
	if s, ok := f.byField[key]; ok {
		return s, nil
	}
	return bitset.New(), nil
}
func (f *fakeEvaluator) NumCompare(field string, op Op, value float64) (*bitset.Set, error) {
	return bitset.New(), nil
}
func (f *fakeEvaluator) Range(field string, lo, hi float64) (*bitset.Set, error) {
	return bitset.New(), nil
}
func (f *fakeEvaluator) Exists(field string) (*bitset.Set, error)  { return bitset.New(), nil }
func (f *fakeEvaluator) IsNull(field string) (*bitset.Set, error)  { return bitset.New(), nil }
func (f *fakeEvaluator) IsEmpty(field string) (*bitset.Set, error) { return bitset.New(), nil }
func (f *fakeEvaluator) Contains(field, substr string, op Op) (*bitset.Set, error) {
	return bitset.New(), nil
}
func (f *fakeEvaluator) GeoRadius(field string, lat, lng, radiusMeters float64) (*bitset.Set, error) {
	return bitset.New(), nil
}
func (f *fakeEvaluator) GeoBoundingBox(field string, ne, sw [2]float64) (*bitset.Set, error) {
	return bitset.New(), nil
}

func TestParseSimpleEquality(t *testing.T) {
	n, err := Parse(`genre = scifi`)
	require.NoError(t, err)
	assert.Equal(t, OpEq, n.Op)
	assert.Equal(t, "genre", n.Field)
	assert.Equal(t, "scifi", n.Str)
}

func TestParseAndOr(t *testing.T) {
	n, err := Parse(`genre = scifi AND year > 1990 OR genre = fantasy`)
	require.NoError(t, err)
	assert.Equal(t, OpOr, n.Op)
	require.Len(t, n.Children, 2)
	assert.Equal(t, OpAnd, n.Children[0].Op)
}

func TestParseNotAndParens(t *testing.T) {
	n, err := Parse(`NOT (genre = scifi)`)
	require.NoError(t, err)
	assert.Equal(t, OpNot, n.Op)
	assert.Equal(t, OpEq, n.Children[0].Op)
}

func TestParseRange(t *testing.T) {
	n, err := Parse(`year 1990 TO 2000`)
	require.NoError(t, err)
	assert.Equal(t, OpTo, n.Op)
	assert.Equal(t, 1990.0, n.NumLo)
	assert.Equal(t, 2000.0, n.NumHi)
}

func TestParseExists(t *testing.T) {
	n, err := Parse(`rating EXISTS`)
	require.NoError(t, err)
	assert.Equal(t, OpExists, n.Op)
}

func TestParseTooDeepRejected(t *testing.T) {
	src := ""
	for i := 0; i < MaxDepth+5; i++ {
		src += "NOT "
	}
	src += "(genre = scifi)"
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestEvalEquality(t *testing.T) {
	universe := bitset.FromSlice([]uint32{1, 2, 3, 4})
	scifi := bitset.FromSlice([]uint32{1, 2})
	ev := &fakeEvaluator{
		universe: universe,
		byField:  map[string]*bitset.Set{"genre=scifi": scifi},
	}
	n, err := Parse(`genre = scifi`)
	require.NoError(t, err)
	result, err := Eval(n, ev)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{1, 2}, result.ToSlice())
}

func TestEvalNot(t *testing.T) {
	universe := bitset.FromSlice([]uint32{1, 2, 3, 4})
	scifi := bitset.FromSlice([]uint32{1, 2})
	ev := &fakeEvaluator{universe: universe, byField: map[string]*bitset.Set{"genre=scifi": scifi}}
	n, err := Parse(`NOT genre = scifi`)
	require.NoError(t, err)
	result, err := Eval(n, ev)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{3, 4}, result.ToSlice())
}
