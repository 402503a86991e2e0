// Package autobatch implements §4.14: a pure function that groups a
// queue of pending operations into the batches the engine will actually
// execute, following the spec's exhaustive op set and 7 coalescing
// rules.
//
// No teacher precedent exists for a task queue (blaze has none); the
// "pure function over a slice, unit-testable via input/output
// snapshots" shape follows the same style the teacher uses for
// BM25Parameters-style config structs — plain data in, plain data out,
// no hidden state.
package autobatch

import "fmt"

// OpKind enumerates every operation a task queue can hold (§4.14).
type OpKind int

const (
	OpAddDocuments OpKind = iota
	OpUpdateDocuments
	OpDeleteDocuments
	OpDeleteByFilter
	OpUpdateSettings
	OpClearDocuments
	OpIndexCreation
	OpIndexUpdate
	OpIndexDeletion
	OpIndexSwap
)

func (k OpKind) isIndexLifecycle() bool {
	switch k {
	case OpIndexCreation, OpIndexUpdate, OpIndexSwap:
		return true
	}
	return false
}

// Op is one pending operation in submission order.
type Op struct {
	Kind       OpKind
	DocIDs     []string // for Add/Update/Delete: external ids touched
	Filter     string   // for DeleteByFilter
	SettingsOp any      // opaque settings patch

	// PrimaryKey declares the index's primary key field. IndexCreation/
	// IndexUpdate set it; a document op may also carry one, which must
	// agree with the key already in force (rule 3 below).
	PrimaryKey string
	// AllowIndexCreation is this op's own allow_index_creation flag, as
	// submitted by the client that queued it (§4.14 rule 3).
	AllowIndexCreation bool

	Seq int // original submission order, preserved for stable output
}

// Batch is one coalesced group of operations meant to run together,
// plus the allow_index_creation flag resolved across the whole group.
type Batch struct {
	Ops                []Op
	AllowIndexCreation bool
}

// Coalesce groups ops into the minimal equivalent sequence of batches,
// given whether the index already exists and its current primary key.
// It is a pure function: same input always produces the same output.
//
// Rules (§4.14):
//  1. IndexDeletion absorbs every op queued before it in the same batch
//     and terminates the batch; nothing queued after it belongs to the
//     same batch.
//  2. Consecutive document/settings ops (AddDocuments, UpdateDocuments,
//     DeleteDocuments, DeleteByFilter, UpdateSettings, ClearDocuments)
//     coalesce into one batch in submission order.
//  3. allow_index_creation is frozen false for the whole batch the
//     moment any op in it sets it false; it never flips back to true
//     after that. A primary-key-setting op conflicting with the
//     index's current (or already-batched) primary key is an error.
//  4. DocumentDeletionByIds (DeleteDocuments/DeleteByFilter) coalesces
//     with preceding document-add ops into the same batch rather than
//     cancelling or shrinking them — the batch carries every op and the
//     engine applies them in order when it runs.
//  5. ClearDocuments discards every op queued before it in the current
//     batch (clearing, then re-adding, still clears first) but, unlike
//     IndexDeletion, does not terminate the batch — ops queued after it
//     still coalesce into the same batch.
//  6. IndexCreation/IndexUpdate/IndexSwap never coalesce with anything,
//     including each other; each forms its own single-op batch.
//  7. Ops are never reordered relative to each other; only grouped,
//     preserving externally observable effect order.
func Coalesce(ops []Op, indexExists bool, currentPrimaryKey string) ([]Batch, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	exists, pk := indexExists, currentPrimaryKey
	var batches []Batch
	i := 0
	for i < len(ops) {
		op := ops[i]

		if op.Kind.isIndexLifecycle() {
			if op.Kind == OpIndexCreation {
				if exists {
					return nil, fmt.Errorf("autobatch: index creation requested but index already exists")
				}
				exists = true
			}
			if op.PrimaryKey != "" {
				pk = op.PrimaryKey
			}
			batches = append(batches, Batch{Ops: []Op{op}, AllowIndexCreation: op.AllowIndexCreation})
			i++
			continue
		}

		cur := Batch{AllowIndexCreation: true}
		for i < len(ops) {
			next := ops[i]
			if next.Kind.isIndexLifecycle() {
				break
			}
			if next.PrimaryKey != "" {
				if pk != "" && next.PrimaryKey != pk {
					return nil, fmt.Errorf("autobatch: primary key conflict: index is %q, operation wants %q", pk, next.PrimaryKey)
				}
				pk = next.PrimaryKey
			}
			if !next.AllowIndexCreation {
				cur.AllowIndexCreation = false // rule 3: frozen false, never thaws
			}
			if next.Kind == OpClearDocuments {
				cur.Ops = nil // rule 5: discards everything batched so far
			}
			cur.Ops = append(cur.Ops, next)
			i++
			if next.Kind == OpIndexDeletion {
				exists, pk = false, ""
				break // rule 1: absorbs everything before it, terminates the batch
			}
		}
		batches = append(batches, cur)
	}
	return batches, nil
}
