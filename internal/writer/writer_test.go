package writer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizenheimer/meili/internal/fieldmap"
)

func TestExtractBatchBuildsPostings(t *testing.T) {
	fields := fieldmap.New()
	docs := []RawDoc{
		{DocID: 1, ExternalID: "a", Flat: map[string]any{"title": "quick brown fox"}},
		{DocID: 2, ExternalID: "b", Flat: map[string]any{"title": "lazy dog"}},
	}
	opts := DefaultOptions()
	opts.Workers = 2
	res, err := ExtractBatch(docs, fields, opts)
	require.NoError(t, err)

	words := res.Postings.Words()
	assert.Contains(t, words, "quick")
	assert.Contains(t, words, "brown")
	assert.Contains(t, words, "fox")
	assert.Empty(t, res.Failures)
}

func TestExtractBatchTracksFieldWordCounts(t *testing.T) {
	fields := fieldmap.New()
	docs := []RawDoc{
		{DocID: 1, ExternalID: "a", Flat: map[string]any{"title": "quick brown fox"}},
	}
	res, err := ExtractBatch(docs, fields, DefaultOptions())
	require.NoError(t, err)

	titleID, ok := fields.ID("title")
	require.True(t, ok)
	counts, ok := res.FieldWordCounts[titleID]
	require.True(t, ok)
	assert.Equal(t, uint32(3), counts[1])
}

func TestExtractBatchMarksNullAndEmpty(t *testing.T) {
	fields := fieldmap.New()
	docs := []RawDoc{
		{DocID: 1, ExternalID: "a", Flat: map[string]any{"bio": nil, "tags": ""}},
	}
	res, err := ExtractBatch(docs, fields, DefaultOptions())
	require.NoError(t, err)

	bioID, _ := fields.ID("bio")
	tagsID, _ := fields.ID("tags")
	assert.True(t, res.NullBits[bioID].Contains(1))
	assert.True(t, res.EmptyBits[tagsID].Contains(1))
}

func TestExtractBatchFilterableFacetValues(t *testing.T) {
	fields := fieldmap.New()
	docs := []RawDoc{
		{DocID: 1, ExternalID: "a", Flat: map[string]any{"genre": "scifi", "year": 1990.0}},
	}
	opts := DefaultOptions()
	opts.FilterableFields = map[string]bool{"genre": true, "year": true}
	res, err := ExtractBatch(docs, fields, opts)
	require.NoError(t, err)
	require.Len(t, res.FacetValues, 2)
}
