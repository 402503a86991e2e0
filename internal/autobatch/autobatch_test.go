package autobatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesceMergesConsecutiveDocumentOps(t *testing.T) {
	ops := []Op{
		{Kind: OpAddDocuments, DocIDs: []string{"a", "b"}, AllowIndexCreation: true, Seq: 0},
		{Kind: OpUpdateDocuments, DocIDs: []string{"c"}, AllowIndexCreation: true, Seq: 1},
		{Kind: OpDeleteDocuments, DocIDs: []string{"a"}, AllowIndexCreation: true, Seq: 2},
	}
	batches, err := Coalesce(ops, true, "id")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Ops, 3)
	assert.True(t, batches[0].AllowIndexCreation)
}

// TestCoalesceAddReplaceDeleteQueue reproduces scenario S3: a queue of
// 4 AddDocuments/DeleteDocuments ops coalesces into one batch carrying
// every op in submission order, with allow_index_creation tracked
// across the whole group.
func TestCoalesceAddReplaceDeleteQueue(t *testing.T) {
	ops := []Op{
		{Kind: OpAddDocuments, DocIDs: []string{"a"}, AllowIndexCreation: true, Seq: 0},
		{Kind: OpDeleteDocuments, DocIDs: []string{"b"}, AllowIndexCreation: true, Seq: 1},
		{Kind: OpAddDocuments, DocIDs: []string{"c"}, AllowIndexCreation: true, Seq: 2},
		{Kind: OpDeleteDocuments, DocIDs: []string{"d"}, AllowIndexCreation: true, Seq: 3},
	}
	batches, err := Coalesce(ops, false, "")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Ops, 4)
	for i, op := range batches[0].Ops {
		assert.Equal(t, i, op.Seq)
	}
	assert.True(t, batches[0].AllowIndexCreation)
}

func TestCoalesceClearDiscardsEarlierOpsButContinuesBatch(t *testing.T) {
	ops := []Op{
		{Kind: OpAddDocuments, DocIDs: []string{"a"}, AllowIndexCreation: true, Seq: 0},
		{Kind: OpClearDocuments, AllowIndexCreation: true, Seq: 1},
		{Kind: OpAddDocuments, DocIDs: []string{"b"}, AllowIndexCreation: true, Seq: 2},
	}
	batches, err := Coalesce(ops, true, "")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Ops, 2)
	assert.Equal(t, OpClearDocuments, batches[0].Ops[0].Kind)
	assert.Equal(t, OpAddDocuments, batches[0].Ops[1].Kind)
}

func TestCoalesceIndexDeletionAbsorbsAndTerminates(t *testing.T) {
	ops := []Op{
		{Kind: OpAddDocuments, DocIDs: []string{"a"}, AllowIndexCreation: true, Seq: 0},
		{Kind: OpIndexDeletion, AllowIndexCreation: true, Seq: 1},
		{Kind: OpAddDocuments, DocIDs: []string{"b"}, AllowIndexCreation: true, Seq: 2},
	}
	batches, err := Coalesce(ops, true, "id")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Len(t, batches[0].Ops, 2)
	assert.Equal(t, OpIndexDeletion, batches[0].Ops[1].Kind)
	require.Len(t, batches[1].Ops, 1)
	assert.Equal(t, OpAddDocuments, batches[1].Ops[0].Kind)
}

func TestCoalesceIndexLifecycleOpsNeverCoalesce(t *testing.T) {
	ops := []Op{
		{Kind: OpIndexUpdate, PrimaryKey: "id", AllowIndexCreation: true, Seq: 0},
		{Kind: OpIndexSwap, AllowIndexCreation: true, Seq: 1},
		{Kind: OpAddDocuments, DocIDs: []string{"a"}, AllowIndexCreation: true, Seq: 2},
	}
	batches, err := Coalesce(ops, true, "id")
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, OpIndexUpdate, batches[0].Ops[0].Kind)
	assert.Equal(t, OpIndexSwap, batches[1].Ops[0].Kind)
	assert.Equal(t, OpAddDocuments, batches[2].Ops[0].Kind)
}

func TestCoalesceAllowIndexCreationFreezesFalse(t *testing.T) {
	ops := []Op{
		{Kind: OpAddDocuments, DocIDs: []string{"a"}, AllowIndexCreation: false, Seq: 0},
		{Kind: OpAddDocuments, DocIDs: []string{"b"}, AllowIndexCreation: true, Seq: 1},
	}
	batches, err := Coalesce(ops, false, "")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.False(t, batches[0].AllowIndexCreation)
}

func TestCoalescePrimaryKeyConflictErrors(t *testing.T) {
	ops := []Op{
		{Kind: OpAddDocuments, DocIDs: []string{"a"}, PrimaryKey: "other", AllowIndexCreation: true, Seq: 0},
	}
	_, err := Coalesce(ops, true, "id")
	assert.Error(t, err)
}

func TestCoalesceIndexCreationOnExistingIndexErrors(t *testing.T) {
	ops := []Op{
		{Kind: OpIndexCreation, PrimaryKey: "id", AllowIndexCreation: true, Seq: 0},
	}
	_, err := Coalesce(ops, true, "id")
	assert.Error(t, err)
}

func TestCoalesceEmptyInput(t *testing.T) {
	batches, err := Coalesce(nil, true, "")
	require.NoError(t, err)
	assert.Nil(t, batches)
}
