package writer

import (
	"sort"

	"github.com/wizenheimer/meili/internal/bitset"
	"github.com/wizenheimer/meili/internal/fst"
	"github.com/wizenheimer/meili/internal/kvstore"
)

// Bucket names for the derived databases in §3. Each lives in its own
// bbolt bucket inside the index's data file.
const (
	BucketWordDocids         = "word_docids"
	BucketExactWordDocids    = "exact_word_docids"
	BucketPrefixDocids       = "prefix_docids"
	BucketWordPairProximity  = "word_pair_proximity_docids"
	BucketWordPositionDocids = "word_position_docids"
	BucketFieldWordCount     = "field_id_word_count_docids"
	BucketFacetNum           = "facet_id_f64_docids"
	BucketFacetString        = "facet_id_string_docids"
	BucketExists             = "field_id_exists_docids"
	BucketNull               = "field_id_null_docids"
	BucketEmpty              = "field_id_empty_docids"
	BucketGeoPoints          = "geo_points"
	BucketWordsFST           = "words_fst"
)

// MinPrefixLength is the shortest prefix the prefix lexicon indexes,
// matching meilisearch's default prefix-search cutoff.
const MinPrefixLength = 1

// MaxPrefixLength caps how many leading characters get their own
// prefix-docids entry (§4.7's "prefix rebuild").
const MaxPrefixLength = 4

// Flush applies one ExtractResult's deltas to every derived database
// within the given write transaction, then merges the batch's words into
// the persisted words FST (§4.7e). No prefix FST is stored; search builds
// one from the prefix_docids keys. It does not commit the transaction.
func Flush(txn *kvstore.Txn, res *ExtractResult) error {
	if err := flushWordDocids(txn, res); err != nil {
		return err
	}
	if err := flushPrefixDocids(txn, res); err != nil {
		return err
	}
	if err := flushWordPositions(txn, res); err != nil {
		return err
	}
	if err := flushProximity(txn, res); err != nil {
		return err
	}
	if err := flushFieldWordCounts(txn, res); err != nil {
		return err
	}
	if err := flushFacets(txn, res); err != nil {
		return err
	}
	if err := flushExistsNullEmpty(txn, res); err != nil {
		return err
	}
	if err := flushGeoPoints(txn, res); err != nil {
		return err
	}
	if err := rebuildWordsFST(txn, res); err != nil {
		return err
	}
	return nil
}

func unionIntoBucket(db *kvstore.Database, key []byte, add *bitset.Set) error {
	existing := bitset.New()
	if raw := db.Get(key); raw != nil {
		decoded, err := bitset.Decode(raw)
		if err != nil {
			return err
		}
		existing = decoded
	}
	merged := bitset.Union(existing, add)
	encoded, err := merged.MarshalBinary()
	if err != nil {
		return err
	}
	return db.Put(key, encoded)
}

func flushWordDocids(txn *kvstore.Txn, res *ExtractResult) error {
	wordDB, err := txn.Database(BucketWordDocids)
	if err != nil {
		return err
	}
	exactDB, err := txn.Database(BucketExactWordDocids)
	if err != nil {
		return err
	}
	for _, word := range res.Postings.Words() {
		sl, _ := res.Postings.List(word)
		docs := bitset.New()
		for _, pos := range sl.All() {
			docs.Add(uint32(pos.DocumentID))
		}
		if err := unionIntoBucket(wordDB, []byte(word), docs); err != nil {
			return err
		}
		if err := unionIntoBucket(exactDB, []byte(word), docs); err != nil {
			return err
		}
	}
	return nil
}

func flushPrefixDocids(txn *kvstore.Txn, res *ExtractResult) error {
	db, err := txn.Database(BucketPrefixDocids)
	if err != nil {
		return err
	}
	byPrefix := make(map[string]*bitset.Set)
	for _, word := range res.Postings.Words() {
		runes := []rune(word)
		maxLen := MaxPrefixLength
		if len(runes) < maxLen {
			maxLen = len(runes)
		}
		sl, _ := res.Postings.List(word)
		docs := bitset.New()
		for _, pos := range sl.All() {
			docs.Add(uint32(pos.DocumentID))
		}
		for n := MinPrefixLength; n <= maxLen; n++ {
			prefix := string(runes[:n])
			if byPrefix[prefix] == nil {
				byPrefix[prefix] = bitset.New()
			}
			byPrefix[prefix] = bitset.Union(byPrefix[prefix], docs)
		}
	}
	for prefix, docs := range byPrefix {
		if err := unionIntoBucket(db, []byte(prefix), docs); err != nil {
			return err
		}
	}
	return nil
}

func flushWordPositions(txn *kvstore.Txn, res *ExtractResult) error {
	db, err := txn.Database(BucketWordPositionDocids)
	if err != nil {
		return err
	}
	for _, word := range res.Postings.Words() {
		sl, _ := res.Postings.List(word)
		for _, pos := range sl.All() {
			// A NUL terminator after the word disambiguates prefix scans:
			// without it, scanning for "cat" would also match "category".
			key := kvstore.NewKey().Bytes([]byte(word)).U8(0).U32(uint32(pos.DocumentID)).F64(pos.Offset).Build()
			if err := db.Put(key, []byte{1}); err != nil {
				return err
			}
		}
	}
	return nil
}

func flushProximity(txn *kvstore.Txn, res *ExtractResult) error {
	if len(res.Proximities) == 0 {
		return nil
	}
	db, err := txn.Database(BucketWordPairProximity)
	if err != nil {
		return err
	}
	byKey := make(map[string]*bitset.Set)
	for _, pp := range res.Proximities {
		if byKey[pp.Key] == nil {
			byKey[pp.Key] = bitset.New()
		}
		byKey[pp.Key].Add(pp.DocID)
	}
	for key, docs := range byKey {
		if err := unionIntoBucket(db, []byte(key), docs); err != nil {
			return err
		}
	}
	return nil
}

func flushFieldWordCounts(txn *kvstore.Txn, res *ExtractResult) error {
	db, err := txn.Database(BucketFieldWordCount)
	if err != nil {
		return err
	}
	for fieldID, byDoc := range res.FieldWordCounts {
		for docID, count := range byDoc {
			key := kvstore.NewKey().U16(fieldID).U32(count).Build()
			docsRaw := db.Get(key)
			docs := bitset.New()
			if docsRaw != nil {
				if d, err := bitset.Decode(docsRaw); err == nil {
					docs = d
				}
			}
			docs.Add(docID)
			encoded, err := docs.MarshalBinary()
			if err != nil {
				return err
			}
			if err := db.Put(key, encoded); err != nil {
				return err
			}
		}
	}
	return nil
}

func flushFacets(txn *kvstore.Txn, res *ExtractResult) error {
	numDB, err := txn.Database(BucketFacetNum)
	if err != nil {
		return err
	}
	strDB, err := txn.Database(BucketFacetString)
	if err != nil {
		return err
	}
	for _, fv := range res.FacetValues {
		if fv.IsString {
			key := kvstore.NewKey().U16(fv.FieldID).Bytes([]byte(fv.Str)).Build()
			docs := bitset.New()
			docs.Add(fv.DocID)
			if err := unionIntoBucket(strDB, key, docs); err != nil {
				return err
			}
			continue
		}
		key := kvstore.NewKey().U16(fv.FieldID).F64(fv.Num).Build()
		docs := bitset.New()
		docs.Add(fv.DocID)
		if err := unionIntoBucket(numDB, key, docs); err != nil {
			return err
		}
	}
	return nil
}

func flushExistsNullEmpty(txn *kvstore.Txn, res *ExtractResult) error {
	existsDB, err := txn.Database(BucketExists)
	if err != nil {
		return err
	}
	nullDB, err := txn.Database(BucketNull)
	if err != nil {
		return err
	}
	emptyDB, err := txn.Database(BucketEmpty)
	if err != nil {
		return err
	}
	for fieldID, docs := range res.ExistsBits {
		if err := unionIntoBucket(existsDB, kvstore.PutU16(fieldID), docs); err != nil {
			return err
		}
	}
	for fieldID, docs := range res.NullBits {
		if err := unionIntoBucket(nullDB, kvstore.PutU16(fieldID), docs); err != nil {
			return err
		}
	}
	for fieldID, docs := range res.EmptyBits {
		if err := unionIntoBucket(emptyDB, kvstore.PutU16(fieldID), docs); err != nil {
			return err
		}
	}
	return nil
}

func flushGeoPoints(txn *kvstore.Txn, res *ExtractResult) error {
	if len(res.GeoPoints) == 0 {
		return nil
	}
	db, err := txn.Database(BucketGeoPoints)
	if err != nil {
		return err
	}
	for _, gp := range res.GeoPoints {
		key := kvstore.PutU32(gp.DocID)
		value := kvstore.NewKey().F64(gp.Lat).F64(gp.Lng).Build()
		if err := db.Put(key, value); err != nil {
			return err
		}
	}
	return nil
}

// rebuildWordsFST merges the new batch's distinct words into the
// persisted FST with fst.Union, which rebuilds it in memory (§4.7e),
// rather than appending, since vellum FSTs are immutable once built.
func rebuildWordsFST(txn *kvstore.Txn, res *ExtractResult) error {
	if len(res.Postings.Words()) == 0 {
		return nil
	}
	db, err := txn.Database(BucketWordsFST)
	if err != nil {
		return err
	}
	const fstKey = "fst"

	words := res.Postings.Words()
	sort.Strings(words)
	keys := make([][]byte, len(words))
	for i, w := range words {
		keys[i] = []byte(w)
	}
	delta, err := fst.Build(keys)
	if err != nil {
		return err
	}

	existing := fst.Empty()
	if raw := db.Get([]byte(fstKey)); raw != nil {
		existing, err = fst.Load(raw)
		if err != nil {
			return err
		}
	}
	merged, err := fst.Union(existing, delta)
	if err != nil {
		return err
	}
	return db.Put([]byte(fstKey), merged.Bytes())
}
