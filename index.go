package meili

import (
	"encoding/json"
	"sync"

	"github.com/wizenheimer/meili/internal/deletion"
	"github.com/wizenheimer/meili/internal/docstore"
	"github.com/wizenheimer/meili/internal/fieldmap"
	"github.com/wizenheimer/meili/internal/kvstore"
	"github.com/wizenheimer/meili/internal/meilierr"
	"github.com/wizenheimer/meili/internal/settingsapply"
	"github.com/wizenheimer/meili/internal/tokenizer"
	"github.com/wizenheimer/meili/internal/writer"
)

const (
	bucketMeta     = "meta"
	metaKeySettings = "settings"
	metaKeyFields   = "fields"
	metaKeyExternal = "external_index"
)

// Index is the public handle over one directory of on-disk search
// structures (§4.15): it opens/creates the store, vends transactions,
// and bundles every derived subsystem behind AddDocuments/
// DeleteDocuments/UpdateSettings/Search/Clear/Stats.
//
// Where the teacher's InvertedIndex guards its maps with a single
// sync.Mutex for the whole structure, Index instead relies on the KV
// store's own writer/reader serialization (internal/kvstore) for
// on-disk state, and a narrower mutex here only for the in-memory
// caches (fieldmap, external id index, settings) mirrored from it.
type Index struct {
	mu       sync.RWMutex
	store    *kvstore.Store
	fields   *fieldmap.Map
	external *docstore.ExternalIndex
	settings Settings
	policy   deletion.Policy
}

// derivedBuckets lists every bucket a full reindex or hard-delete pass
// must touch, in addition to the documents/meta buckets.
var derivedBuckets = []string{
	writer.BucketWordDocids,
	writer.BucketExactWordDocids,
	writer.BucketPrefixDocids,
	writer.BucketWordPairProximity,
	writer.BucketWordPositionDocids,
	writer.BucketFieldWordCount,
	writer.BucketFacetNum,
	writer.BucketFacetString,
	writer.BucketExists,
	writer.BucketNull,
	writer.BucketEmpty,
	writer.BucketGeoPoints,
}

// Open opens or creates an index directory.
func Open(path string) (*Index, error) {
	store, err := kvstore.Open(path, kvstore.DefaultOptions())
	if err != nil {
		return nil, meilierr.Resource(err, "opening index at %q", path)
	}
	idx := &Index{
		store:    store,
		fields:   fieldmap.New(),
		external: docstore.NewExternalIndex(),
		settings: DefaultSettings(),
		policy:   deletion.DefaultPolicy(),
	}
	if err := idx.loadMeta(); err != nil {
		store.Close()
		return nil, err
	}
	return idx, nil
}

// Close releases the underlying store.
func (idx *Index) Close() error {
	return idx.store.Close()
}

func (idx *Index) loadMeta() error {
	txn, err := idx.store.BeginRead()
	if err != nil {
		return meilierr.Resource(err, "beginning read transaction")
	}
	defer txn.Abort()

	db, err := txn.Database(bucketMeta)
	if err != nil {
		return meilierr.Internal(err, "opening meta bucket")
	}
	if raw := db.Get([]byte(metaKeyFields)); raw != nil {
		var entries map[string]uint16
		if err := json.Unmarshal(raw, &entries); err != nil {
			return meilierr.Internal(err, "decoding field map")
		}
		idx.fields = fieldmap.FromEntries(entries)
	}
	if raw := db.Get([]byte(metaKeySettings)); raw != nil {
		var s Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			return meilierr.Internal(err, "decoding settings")
		}
		idx.settings = s
	}
	if raw := db.Get([]byte(metaKeyExternal)); raw != nil {
		ext, err := decodeExternalIndex(raw)
		if err != nil {
			return meilierr.Internal(err, "decoding external id index")
		}
		idx.external = ext
	}
	return nil
}

func (idx *Index) persistMeta(txn *kvstore.Txn) error {
	db, err := txn.Database(bucketMeta)
	if err != nil {
		return err
	}
	fieldsJSON, err := json.Marshal(idx.fields.Entries())
	if err != nil {
		return err
	}
	if err := db.Put([]byte(metaKeyFields), fieldsJSON); err != nil {
		return err
	}
	settingsJSON, err := json.Marshal(idx.settings)
	if err != nil {
		return err
	}
	if err := db.Put([]byte(metaKeySettings), settingsJSON); err != nil {
		return err
	}
	extJSON, err := encodeExternalIndex(idx.external)
	if err != nil {
		return err
	}
	return db.Put([]byte(metaKeyExternal), extJSON)
}

// externalIndexSnapshot is the JSON-friendly form of docstore.ExternalIndex.
type externalIndexSnapshot struct {
	ToExternal map[uint32]string `json:"to_external"`
	SoftDeleted []uint32         `json:"soft_deleted"`
}

func encodeExternalIndex(ext *docstore.ExternalIndex) ([]byte, error) {
	snap := externalIndexSnapshot{ToExternal: make(map[uint32]string)}
	for _, e := range ext.SortedExternalIDs() {
		snap.ToExternal[e.DocID] = e.External
	}
	snap.SoftDeleted = ext.SoftDeletedIDs().ToSlice()
	return json.Marshal(snap)
}

func decodeExternalIndex(raw []byte) (*docstore.ExternalIndex, error) {
	var snap externalIndexSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	ext := docstore.NewExternalIndex()
	for docID, extID := range snap.ToExternal {
		ext.Restore(docID, extID)
	}
	for _, id := range snap.SoftDeleted {
		ext.MarkSoftDeleted(id)
	}
	return ext, nil
}

// AddDocuments ingests a batch of JSON documents, replacing any
// existing document sharing the same external id (§4.7's "update vs
// replace": a replace here, full-document semantics).
func (idx *Index) AddDocuments(docs []map[string]any) ([]DocFailure, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	raw, failures := writer.DocumentsToRawDocs(docs, idx.settings.PrimaryKey, idx.external)

	opts := writer.DefaultOptions()
	opts.SearchableFields = idx.settings.SearchableAttributes
	opts.FilterableFields = toSet(idx.settings.FilterableAttributes)
	opts.Tokenizer = idx.tokenizerConfig()
	if idx.settings.ProximityPrecision == "byAttribute" {
		opts.Proximity = writer.ProximityByAttribute
	}

	res, err := writer.ExtractBatch(raw, idx.fields, opts)
	if err != nil {
		return failures, err
	}
	for _, f := range res.Failures {
		failures = append(failures, DocFailure{ExternalID: f.ExternalID, Err: f.Err})
	}

	txn, err := idx.store.BeginWrite()
	if err != nil {
		return failures, meilierr.Resource(err, "beginning write transaction")
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	docDB, err := docstore.Open(txn)
	if err != nil {
		return failures, err
	}
	for _, d := range raw {
		rec, err := flatToRecord(d.Flat, idx.fields)
		if err != nil {
			failures = append(failures, DocFailure{ExternalID: d.ExternalID, Err: err})
			continue
		}
		if err := docDB.Put(d.DocID, rec); err != nil {
			return failures, meilierr.Internal(err, "storing document %q", d.ExternalID)
		}
	}

	if err := writer.Flush(txn, res); err != nil {
		return failures, meilierr.Internal(err, "flushing write batch")
	}
	if err := idx.persistMeta(txn); err != nil {
		return failures, meilierr.Internal(err, "persisting metadata")
	}
	if err := txn.Commit(); err != nil {
		return failures, meilierr.Resource(err, "committing write transaction")
	}
	committed = true
	return failures, nil
}

// DocFailure is a per-document failure surfaced from AddDocuments
// without aborting the rest of the batch (§4.7).
type DocFailure = writer.DocFailure

func flatToRecord(flat map[string]any, fields *fieldmap.Map) (docstore.Record, error) {
	rec := make(docstore.Record, len(flat))
	for path, val := range flat {
		fieldID, err := fields.Insert(path)
		if err != nil {
			return nil, meilierr.Schema("too many fields: %v", err)
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, meilierr.Internal(err, "encoding field %q", path)
		}
		rec[fieldID] = encoded
	}
	return rec, nil
}

func recordToFlat(rec docstore.Record, fields *fieldmap.Map) map[string]any {
	out := make(map[string]any, len(rec))
	for fieldID, raw := range rec {
		name, ok := fields.Name(fieldID)
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			out[name] = v
		}
	}
	return out
}

// DeleteDocuments soft-deletes the given external ids, then compacts
// with a hard delete pass if the index's configured deletion policy
// says the accumulated tombstones warrant it (§4.13's dynamic mode).
func (idx *Index) DeleteDocuments(externalIDs []string) error {
	return idx.deleteDocuments(externalIDs, idx.policy.Mode)
}

// DeleteDocumentsMode soft-deletes the given external ids, overriding
// the index's configured policy mode for this call only (§4.13:
// "always_soft / always_hard override").
func (idx *Index) DeleteDocumentsMode(externalIDs []string, mode deletion.Mode) error {
	return idx.deleteDocuments(externalIDs, mode)
}

func (idx *Index) deleteDocuments(externalIDs []string, mode deletion.Mode) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var docIDs []uint32
	for _, extID := range externalIDs {
		if docID, ok := idx.external.Lookup(extID); ok {
			docIDs = append(docIDs, docID)
		}
	}
	if len(docIDs) == 0 {
		return nil
	}
	deletion.SoftDelete(idx.external, docIDs)

	policy := idx.policy
	policy.Mode = mode
	if !policy.ShouldCompact(idx.external) {
		return idx.commitMetaOnly()
	}
	return idx.compact()
}

func (idx *Index) commitMetaOnly() error {
	txn, err := idx.store.BeginWrite()
	if err != nil {
		return meilierr.Resource(err, "beginning write transaction")
	}
	if err := idx.persistMeta(txn); err != nil {
		txn.Abort()
		return meilierr.Internal(err, "persisting metadata")
	}
	if err := txn.Commit(); err != nil {
		return meilierr.Resource(err, "committing write transaction")
	}
	return nil
}

// compact hard-deletes every soft-deleted document, pruning derived
// databases and the document store (§4.13).
func (idx *Index) compact() error {
	txn, err := idx.store.BeginWrite()
	if err != nil {
		return meilierr.Resource(err, "beginning write transaction")
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	ids := idx.external.DrainSoftDeleted()
	if err := deletion.HardDelete(txn, derivedBuckets, idx.external, ids); err != nil {
		return meilierr.Internal(err, "compacting derived databases")
	}
	docDB, err := docstore.Open(txn)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_ = docDB.Delete(id)
	}
	if err := idx.persistMeta(txn); err != nil {
		return meilierr.Internal(err, "persisting metadata")
	}
	if err := txn.Commit(); err != nil {
		return meilierr.Resource(err, "committing write transaction")
	}
	committed = true
	return nil
}

// Clear removes every document and derived database, keeping settings.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	txn, err := idx.store.BeginWrite()
	if err != nil {
		return meilierr.Resource(err, "beginning write transaction")
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	all := append([]string{docstore.DocumentsBucket}, derivedBuckets...)
	for _, name := range all {
		db, err := txn.Database(name)
		if err != nil {
			return err
		}
		var keys [][]byte
		db.Range(func(k, v []byte) bool {
			keys = append(keys, append([]byte(nil), k...))
			return true
		})
		for _, k := range keys {
			if err := db.Delete(k); err != nil {
				return err
			}
		}
	}
	idx.external = docstore.NewExternalIndex()
	if err := idx.persistMeta(txn); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UpdateSettings validates and applies a tri-state patch, triggering a
// reindex of the affected databases per its classified scope (§4.12).
func (idx *Index) UpdateSettings(patch SettingsPatch) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := settingsapply.Validate(patch, idx.settings.PrimaryKey != ""); err != nil {
		return err
	}
	scope := settingsapply.Classify(patch)
	idx.settings = applyPatch(idx.settings, patch)

	switch scope {
	case settingsapply.ScopeFull, settingsapply.ScopeFacetsOnly:
		return idx.reindexAll()
	default:
		return idx.commitMetaOnly()
	}
}

// SetContainsFilter toggles the experimental CONTAINS/STARTS WITH
// feature flag (§4.9). It is a separate call from UpdateSettings since,
// like meilisearch's experimental features endpoint, it isn't part of
// the tri-state settings patch and never triggers a reindex.
func (idx *Index) SetContainsFilter(enabled bool) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.settings.ContainsFilter = enabled
	return idx.commitMetaOnly()
}

// reindexAll rebuilds every derived database from the stored documents
// under the current settings (§4.12: a searchable/filterable attribute
// change reindexes from the document store, not incrementally).
func (idx *Index) reindexAll() error {
	txn, err := idx.store.BeginWrite()
	if err != nil {
		return meilierr.Resource(err, "beginning write transaction")
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	for _, name := range derivedBuckets {
		db, err := txn.Database(name)
		if err != nil {
			return err
		}
		var keys [][]byte
		db.Range(func(k, v []byte) bool {
			keys = append(keys, append([]byte(nil), k...))
			return true
		})
		for _, k := range keys {
			if err := db.Delete(k); err != nil {
				return err
			}
		}
	}

	docDB, err := docstore.Open(txn)
	if err != nil {
		return err
	}
	var raw []writer.RawDoc
	_ = docDB.Iter(func(docID uint32, rec docstore.Record) bool {
		extID, _ := idx.external.ExternalID(docID)
		raw = append(raw, writer.RawDoc{DocID: docID, ExternalID: extID, Flat: recordToFlat(rec, idx.fields)})
		return true
	})

	opts := writer.DefaultOptions()
	opts.SearchableFields = idx.settings.SearchableAttributes
	opts.FilterableFields = toSet(idx.settings.FilterableAttributes)
	opts.Tokenizer = idx.tokenizerConfig()
	if idx.settings.ProximityPrecision == "byAttribute" {
		opts.Proximity = writer.ProximityByAttribute
	}

	res, err := writer.ExtractBatch(raw, idx.fields, opts)
	if err != nil {
		return err
	}
	if err := writer.Flush(txn, res); err != nil {
		return err
	}
	if err := idx.persistMeta(txn); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (idx *Index) tokenizerConfig() tokenizer.Config {
	cfg := tokenizer.DefaultConfig()
	if len(idx.settings.StopWords) > 0 {
		set := make(map[string]struct{}, len(idx.settings.StopWords))
		for _, w := range idx.settings.StopWords {
			set[w] = struct{}{}
		}
		cfg.StopWords = set
	}
	return cfg
}

func toSet(list []string) map[string]bool {
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]bool, len(list))
	for _, s := range list {
		out[s] = true
	}
	return out
}

// Stats reports index-wide counters (§4.15).
type Stats struct {
	NumberOfDocuments uint64
	IsIndexing        bool
	FieldDistribution map[string]uint64
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		NumberOfDocuments: idx.external.LiveCount(),
		FieldDistribution: make(map[string]uint64),
	}
}
