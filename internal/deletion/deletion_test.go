package deletion

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wizenheimer/meili/internal/docstore"
)

func TestPolicyShouldCompact(t *testing.T) {
	ext := docstore.NewExternalIndex()
	for i := 0; i < 1000; i++ {
		ext.Allocate(fmt.Sprintf("doc-%d", i))
	}
	p := DefaultPolicy()
	p.MinSoftDeletes = 5
	assert.False(t, p.ShouldCompact(ext))

	// Below the spec's ratio>=1.0 invariant (soft < live): must not compact.
	ids := ext.DocumentsIDs().ToSlice()
	for i := 0; i < 150 && i < len(ids); i++ {
		ext.MarkSoftDeleted(ids[i])
	}
	assert.False(t, p.ShouldCompact(ext))

	// Soft-deleted count now reaches the live count: ratio == 1.0, must compact.
	for i := 150; i < 500 && i < len(ids); i++ {
		ext.MarkSoftDeleted(ids[i])
	}
	assert.True(t, p.ShouldCompact(ext))
}

func TestPolicyByteEstimateTriggersCompaction(t *testing.T) {
	ext := docstore.NewExternalIndex()
	for i := 0; i < 10000; i++ {
		ext.Allocate(fmt.Sprintf("doc-%d", i))
	}
	p := DefaultPolicy()
	p.MinSoftDeletes = 5
	p.SoftDeleteRatioThreshold = 1.0
	p.AvgDocBytes = 1 << 20 // 1 MiB/doc, so ~1100 soft deletes exceeds the 1 GiB estimate
	ids := ext.DocumentsIDs().ToSlice()
	for i := 0; i < 1100; i++ {
		ext.MarkSoftDeleted(ids[i])
	}
	// Ratio (1100/8900) is well under 1.0, but the byte estimate trips it.
	assert.True(t, p.ShouldCompact(ext))
}

func TestPolicyAlwaysSoftNeverCompacts(t *testing.T) {
	ext := docstore.NewExternalIndex()
	id, _ := ext.Allocate("doc-1")
	ext.MarkSoftDeleted(id)
	p := DefaultPolicy()
	p.Mode = ModeAlwaysSoft
	assert.False(t, p.ShouldCompact(ext))
}

func TestPolicyAlwaysHardCompactsImmediately(t *testing.T) {
	ext := docstore.NewExternalIndex()
	id, _ := ext.Allocate("doc-1")
	ext.MarkSoftDeleted(id)
	p := DefaultPolicy()
	p.Mode = ModeAlwaysHard
	assert.True(t, p.ShouldCompact(ext))
}

func TestSoftDeleteMarksTombstones(t *testing.T) {
	ext := docstore.NewExternalIndex()
	id, _ := ext.Allocate("doc-1")
	SoftDelete(ext, []uint32{id})
	assert.True(t, ext.SoftDeletedIDs().Contains(id))
}
