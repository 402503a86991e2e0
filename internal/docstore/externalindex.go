package docstore

import (
	"errors"
	"sort"
	"sync"

	"github.com/wizenheimer/meili/internal/bitset"
)

// ErrNotFound is returned when an external id has no mapped docid.
var ErrNotFound = errors.New("docstore: external id not found")

// ExternalIndex maps user-supplied primary keys to internal docids and
// tracks soft-deleted docids pending compaction (§3 "External-id index").
// The forward and reverse maps are plain Go maps; no FST is built from
// them. The index handle persists them as JSON in its meta record.
type ExternalIndex struct {
	mu           sync.RWMutex
	toDocID      map[string]uint32
	toExternal   map[uint32]string
	softDeleted  *bitset.Set
	freeList     []uint32
	highWater    uint32
	documentsIDs *bitset.Set
}

// NewExternalIndex returns an empty index.
func NewExternalIndex() *ExternalIndex {
	return &ExternalIndex{
		toDocID:      make(map[string]uint32),
		toExternal:   make(map[uint32]string),
		softDeleted:  bitset.New(),
		documentsIDs: bitset.New(),
	}
}

// Lookup resolves an external id to its internal docid.
func (e *ExternalIndex) Lookup(externalID string) (uint32, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.toDocID[externalID]
	return id, ok
}

// ExternalID resolves a docid back to its user-facing primary key value.
func (e *ExternalIndex) ExternalID(docID uint32) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.toExternal[docID]
	return s, ok
}

// Allocate returns the docid for externalID, creating one from the
// free-list (vacated soft-deleted ids) or the high-water mark if this is
// a new document (§4.6).
func (e *ExternalIndex) Allocate(externalID string) (docID uint32, isNew bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.toDocID[externalID]; ok {
		return id, false
	}
	var id uint32
	if n := len(e.freeList); n > 0 {
		id = e.freeList[n-1]
		e.freeList = e.freeList[:n-1]
	} else {
		id = e.highWater
		e.highWater++
	}
	e.toDocID[externalID] = id
	e.toExternal[id] = externalID
	e.documentsIDs.Add(id)
	return id, true
}

// MarkSoftDeleted flags docID as pending compaction without touching any
// derived database (§4.13 soft deletion).
func (e *ExternalIndex) MarkSoftDeleted(docID uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.softDeleted.Add(docID)
}

// HardDelete removes docID and its external-id mapping entirely, and
// returns its id to the free-list for reuse (§3 invariant 5: reuse only
// after compaction erases the previous occupant everywhere).
func (e *ExternalIndex) HardDelete(docID uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ext, ok := e.toExternal[docID]; ok {
		delete(e.toDocID, ext)
		delete(e.toExternal, docID)
	}
	e.softDeleted.Remove(docID)
	e.documentsIDs.Remove(docID)
	e.freeList = append(e.freeList, docID)
}

// SoftDeletedCount and LiveCount feed the §4.13 dynamic deletion policy.
func (e *ExternalIndex) SoftDeletedCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.softDeleted.Len()
}

func (e *ExternalIndex) LiveCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.documentsIDs.Len() - e.softDeleted.Len()
}

// DocumentsIDs returns the documents_ids bitmap (live + soft-deleted,
// since soft-deleted ids stay "present" until compaction but are filtered
// at query time — see internal/deletion).
func (e *ExternalIndex) DocumentsIDs() *bitset.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.documentsIDs.Clone()
}

// SoftDeletedIDs returns the soft_deleted bitmap.
func (e *ExternalIndex) SoftDeletedIDs() *bitset.Set {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.softDeleted.Clone()
}

// Restore reinserts a previously-known (externalID, docID) pair without
// consulting the free-list, used when reloading the index's meta record
// at Open time (§4.15).
func (e *ExternalIndex) Restore(docID uint32, externalID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toDocID[externalID] = docID
	e.toExternal[docID] = externalID
	e.documentsIDs.Add(docID)
	if docID >= e.highWater {
		e.highWater = docID + 1
	}
}

// DrainSoftDeleted returns and clears every soft-deleted docid, used by
// the deletion engine's hard-compaction path.
func (e *ExternalIndex) DrainSoftDeleted() []uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.softDeleted.ToSlice()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	e.softDeleted = bitset.New()
	return ids
}

// SortedExternalIDs returns every (external id, docid) pair sorted by
// external id, used when persisting the index's meta record.
func (e *ExternalIndex) SortedExternalIDs() []struct {
	External string
	DocID    uint32
} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]struct {
		External string
		DocID    uint32
	}, 0, len(e.toDocID))
	for ext, id := range e.toDocID {
		out = append(out, struct {
			External string
			DocID    uint32
		}{ext, id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].External < out[j].External })
	return out
}
