// Package deletion implements §4.13: soft/hard/dynamic deletion policy
// and the compensating edits it drives across every derived database.
//
// Soft deletion just flips a bit in internal/docstore's ExternalIndex
// (already built there, grounded on the teacher's DocBitmaps pattern of
// keeping membership as a bitmap rather than mutating postings in
// place); this package adds the policy that decides *when* a hard
// compaction pass runs, and the compensating-edit walk that removes a
// hard-deleted document's ids from every word/facet/geo bucket.
package deletion

import (
	"github.com/wizenheimer/meili/internal/bitset"
	"github.com/wizenheimer/meili/internal/docstore"
	"github.com/wizenheimer/meili/internal/kvstore"
)

// Mode selects how DeleteDocuments picks between soft and hard
// deletion (§4.13: "Policy: dynamic (default) ... always_soft /
// always_hard override").
type Mode int

const (
	// ModeDynamic lets ShouldCompact decide per the ratio/byte-estimate
	// thresholds below — the default.
	ModeDynamic Mode = iota
	// ModeAlwaysSoft never compacts; tombstones accumulate until the
	// caller switches modes or compacts explicitly.
	ModeAlwaysSoft
	// ModeAlwaysHard compacts on every call that has any soft deletion
	// pending, regardless of ratio or byte estimate.
	ModeAlwaysHard
)

// Policy decides when accumulated soft deletions should be compacted
// into a hard rewrite (§4.13: "dynamic policy").
type Policy struct {
	Mode Mode

	// SoftDeleteRatioThreshold triggers compaction once soft-deleted
	// docs reach this multiple of the live set. The spec's literal
	// invariant is "soft-deleted count >= live count", i.e. 1.0.
	SoftDeleteRatioThreshold float64
	// MinSoftDeletes avoids compacting tiny indexes on every delete.
	MinSoftDeletes uint64
	// MaxSoftDeleteBytes triggers compaction once the estimated bytes
	// occupied by soft-deleted documents' derived-database entries
	// exceeds this many bytes, regardless of the ratio (§4.13: "or
	// estimated soft-deleted bytes > 1 GiB").
	MaxSoftDeleteBytes uint64
	// AvgDocBytes approximates one document's footprint across every
	// derived database, since the store doesn't track per-document
	// size directly; soft-deleted bytes are estimated as
	// soft-count * AvgDocBytes.
	AvgDocBytes uint64
}

func DefaultPolicy() Policy {
	return Policy{
		Mode:                     ModeDynamic,
		SoftDeleteRatioThreshold: 1.0,
		MinSoftDeletes:           100,
		MaxSoftDeleteBytes:       1 << 30, // 1 GiB
		AvgDocBytes:              1024,
	}
}

// ShouldCompact reports whether a hard compaction pass should run now.
func (p Policy) ShouldCompact(ext *docstore.ExternalIndex) bool {
	soft := ext.SoftDeletedCount()
	switch p.Mode {
	case ModeAlwaysSoft:
		return false
	case ModeAlwaysHard:
		return soft > 0
	}
	if soft < p.MinSoftDeletes {
		return false
	}
	live := ext.LiveCount()
	if live == 0 {
		return soft > 0
	}
	if float64(soft)/float64(live) >= p.SoftDeleteRatioThreshold {
		return true
	}
	estimatedBytes := soft * p.AvgDocBytes
	return estimatedBytes > p.MaxSoftDeleteBytes
}

// SoftDelete marks docIDs as tombstoned without touching any derived
// database; queries exclude them by intersecting against the live set.
func SoftDelete(ext *docstore.ExternalIndex, docIDs []uint32) {
	for _, id := range docIDs {
		ext.MarkSoftDeleted(id)
	}
}

// pruneBucket removes a set of docids from one bucket's value (which
// is assumed to be a roaring-encoded bitset), deleting the key entirely
// if the result is empty.
func pruneBucket(db *kvstore.Database, removed *bitset.Set) error {
	var toDelete [][]byte
	var toUpdate [][2][]byte
	db.Range(func(key, value []byte) bool {
		set, err := bitset.Decode(value)
		if err != nil {
			return true
		}
		if bitset.IntersectionCardinality(set, removed) == 0 {
			return true
		}
		pruned := bitset.Difference(set, removed)
		if pruned.IsEmpty() {
			keyCopy := append([]byte(nil), key...)
			toDelete = append(toDelete, keyCopy)
			return true
		}
		encoded, err := pruned.MarshalBinary()
		if err != nil {
			return true
		}
		keyCopy := append([]byte(nil), key...)
		toUpdate = append(toUpdate, [2][]byte{keyCopy, encoded})
		return true
	})
	for _, k := range toDelete {
		if err := db.Delete(k); err != nil {
			return err
		}
	}
	for _, kv := range toUpdate {
		if err := db.Put(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// HardDelete compacts a batch of soft-deleted document ids out of every
// docid-bitmap-valued derived database (§4.13: "compensating edits"),
// then releases their document ids back to the free list.
func HardDelete(txn *kvstore.Txn, bucketNames []string, ext *docstore.ExternalIndex, docIDs []uint32) error {
	removed := bitset.FromSlice(docIDs)
	for _, name := range bucketNames {
		db, err := txn.Database(name)
		if err != nil {
			return err
		}
		if err := pruneBucket(db, removed); err != nil {
			return err
		}
	}
	for _, id := range docIDs {
		ext.HardDelete(id)
	}
	return nil
}
