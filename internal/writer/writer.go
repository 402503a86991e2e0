// Package writer implements §4.7: the document write pipeline that turns
// a batch of raw JSON documents into deltas against every derived
// database in §3 — Transform, parallel Extract, merge, prefix rebuild,
// and FST diff.
//
// The per-document extraction loop is grounded on the teacher's
// index.go Index() method (tokenize via the analyzer, walk tokens,
// record a position per occurrence); the worker-pool fan-out that
// parallelizes Extract across documents is grounded on the
// done-channel/goroutine pattern the teacher itself uses in
// index_test.go's concurrency test, generalized from a fixed 3
// goroutines into a worker pool sized to the batch.
package writer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wizenheimer/meili/internal/bitset"
	"github.com/wizenheimer/meili/internal/docstore"
	"github.com/wizenheimer/meili/internal/fieldmap"
	"github.com/wizenheimer/meili/internal/meilierr"
	"github.com/wizenheimer/meili/internal/posting"
	"github.com/wizenheimer/meili/internal/tokenizer"
)

// ProximityMode selects how word-pair-proximity-docids are keyed, per
// the "proximityPrecision" setting in §4.12.
type ProximityMode int

const (
	ProximityByWord ProximityMode = iota
	ProximityByAttribute
)

// Options configures one write batch.
type Options struct {
	SearchableFields []string // ordered; empty means "all fields, sorted by path"
	FilterableFields map[string]bool
	SortableFields   map[string]bool
	Proximity        ProximityMode
	Tokenizer        tokenizer.Config
	MaxPositionsPerAttribute int // §4.7 cap, 0 means unlimited
	Workers          int
}

func DefaultOptions() Options {
	return Options{
		Tokenizer: tokenizer.DefaultConfig(),
		Proximity: ProximityByWord,
		Workers:   4,
	}
}

// RawDoc is one input document plus the external id resolved for it.
type RawDoc struct {
	DocID      uint32
	ExternalID string
	Flat       map[string]any
}

// DocFailure records a per-document user_error (§4.7: "a per-document
// user_error must not abort the rest of the batch").
type DocFailure struct {
	ExternalID string
	Err        error
}

// FacetValue is one (field, value) pair extracted from a document's
// flattened form, destined for the facet leveled B-trees (§4.8).
type FacetValue struct {
	FieldID  uint16
	DocID    uint32
	IsString bool
	Num      float64
	Str      string
}

// ProximityPair is one observed adjacency between two words, destined
// for word-pair-proximity-docids (§3, keyed either by word pair alone
// or by word pair + attribute, per Options.Proximity).
type ProximityPair struct {
	Key      string
	DocID    uint32
	Distance uint8
}

func proximityKey(mode ProximityMode, w1, w2 string, fieldID uint16) string {
	if mode == ProximityByAttribute {
		return fmt.Sprintf("%s\x00%s\x00%d", w1, w2, fieldID)
	}
	return w1 + "\x00" + w2
}

// GeoPoint is an extracted _geo value.
type GeoPoint struct {
	DocID uint32
	Lat   float64
	Lng   float64
}

// ExtractResult is what one worker produces for its shard of documents.
type ExtractResult struct {
	Postings        *posting.Index
	FieldWordCounts map[uint16]map[uint32]uint32 // field -> docid -> word count
	FacetValues     []FacetValue
	GeoPoints       []GeoPoint
	Proximities     []ProximityPair
	ExistsBits      map[uint16]*bitset.Set
	NullBits        map[uint16]*bitset.Set
	EmptyBits       map[uint16]*bitset.Set
	Failures        []DocFailure
}

func newExtractResult() *ExtractResult {
	return &ExtractResult{
		Postings:        posting.NewIndex(),
		FieldWordCounts: make(map[uint16]map[uint32]uint32),
		ExistsBits:      make(map[uint16]*bitset.Set),
		NullBits:        make(map[uint16]*bitset.Set),
		EmptyBits:       make(map[uint16]*bitset.Set),
	}
}

// ExtractBatch runs Extract over every document in docs, fanning out
// across Options.Workers goroutines and merging into one ExtractResult.
// A per-document user error becomes a DocFailure rather than aborting
// the batch (a panic is not recovered); only a fieldmap allocation
// failure (structural:
// too many fields) propagates as an error, matching §4.7's "abort the
// whole txn on structural errors" rule.
func ExtractBatch(docs []RawDoc, fields *fieldmap.Map, opts Options) (*ExtractResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	if workers == 0 {
		return newExtractResult(), nil
	}

	shards := make([][]RawDoc, workers)
	for i, d := range docs {
		shards[i%workers] = append(shards[i%workers], d)
	}

	results := make([]*ExtractResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer wg.Done()
			r, err := extractShard(shards[w], fields, opts)
			results[w] = r
			errs[w] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return mergeResults(results), nil
}

func extractShard(docs []RawDoc, fields *fieldmap.Map, opts Options) (*ExtractResult, error) {
	res := newExtractResult()
	for _, d := range docs {
		if err := extractOne(d, fields, opts, res); err != nil {
			if isStructural(err) {
				return nil, err
			}
			res.Failures = append(res.Failures, DocFailure{ExternalID: d.ExternalID, Err: err})
		}
	}
	return res, nil
}

func isStructural(err error) bool {
	e, ok := err.(*meilierr.Error)
	return ok && e.Code == meilierr.CodeSchema
}

func extractOne(d RawDoc, fields *fieldmap.Map, opts Options, res *ExtractResult) error {
	searchable := opts.SearchableFields
	if len(searchable) == 0 {
		searchable = sortedKeys(d.Flat)
	}

	for _, path := range searchable {
		val, present := d.Flat[path]
		fieldID, err := fields.Insert(path)
		if err != nil {
			return meilierr.Schema("too many fields: %v", err)
		}

		if !present {
			continue
		}
		markExists(res, fieldID, d.DocID)

		if val == nil {
			markNull(res, fieldID, d.DocID)
			continue
		}

		if isEmptyValue(val) {
			markEmpty(res, fieldID, d.DocID)
			continue
		}

		text, ok := val.(string)
		if !ok {
			continue
		}
		tokens := tokenizer.AnalyzeWithConfig(text, opts.Tokenizer)
		offset := 0
		var prevWord string
		havePrev := false
		for _, tok := range tokens {
			if tok.Kind != tokenizer.KindWord {
				continue
			}
			if opts.MaxPositionsPerAttribute > 0 && offset >= opts.MaxPositionsPerAttribute {
				break
			}
			packed := posting.PackPosition(fieldID, offset)
			res.Postings.Add(tok.Text, d.DocID, packed)
			if havePrev && prevWord != tok.Text {
				key := proximityKey(opts.Proximity, prevWord, tok.Text, fieldID)
				res.Proximities = append(res.Proximities, ProximityPair{
					Key: key, DocID: d.DocID, Distance: 1,
				})
			}
			prevWord, havePrev = tok.Text, true
			offset++
		}
		if offset > 0 {
			if res.FieldWordCounts[fieldID] == nil {
				res.FieldWordCounts[fieldID] = make(map[uint32]uint32)
			}
			res.FieldWordCounts[fieldID][d.DocID] = uint32(offset)
		}
	}

	for path := range opts.FilterableFields {
		val, present := d.Flat[path]
		if !present || val == nil {
			continue
		}
		fieldID, err := fields.Insert(path)
		if err != nil {
			return meilierr.Schema("too many fields: %v", err)
		}
		switch v := val.(type) {
		case float64:
			res.FacetValues = append(res.FacetValues, FacetValue{FieldID: fieldID, DocID: d.DocID, Num: v})
		case bool:
			n := 0.0
			if v {
				n = 1.0
			}
			res.FacetValues = append(res.FacetValues, FacetValue{FieldID: fieldID, DocID: d.DocID, Num: n})
		case string:
			res.FacetValues = append(res.FacetValues, FacetValue{FieldID: fieldID, DocID: d.DocID, IsString: true, Str: v})
		}
	}

	if geo, ok := d.Flat["_geo"].(map[string]any); ok {
		lat, latOK := toFloat(geo["lat"])
		lng, lngOK := toFloat(geo["lng"])
		if latOK && lngOK {
			res.GeoPoints = append(res.GeoPoints, GeoPoint{DocID: d.DocID, Lat: lat, Lng: lng})
		}
	}

	return nil
}

func toFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func markExists(res *ExtractResult, fieldID uint16, docID uint32) {
	if res.ExistsBits[fieldID] == nil {
		res.ExistsBits[fieldID] = bitset.New()
	}
	res.ExistsBits[fieldID].Add(docID)
}

func markNull(res *ExtractResult, fieldID uint16, docID uint32) {
	if res.NullBits[fieldID] == nil {
		res.NullBits[fieldID] = bitset.New()
	}
	res.NullBits[fieldID].Add(docID)
}

func markEmpty(res *ExtractResult, fieldID uint16, docID uint32) {
	if res.EmptyBits[fieldID] == nil {
		res.EmptyBits[fieldID] = bitset.New()
	}
	res.EmptyBits[fieldID].Add(docID)
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func mergeResults(parts []*ExtractResult) *ExtractResult {
	out := newExtractResult()
	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, w := range p.Postings.Words() {
			sl, _ := p.Postings.List(w)
			for _, pos := range sl.All() {
				out.Postings.Add(w, uint32(pos.DocumentID), pos.Offset)
			}
		}
		for fieldID, byDoc := range p.FieldWordCounts {
			if out.FieldWordCounts[fieldID] == nil {
				out.FieldWordCounts[fieldID] = make(map[uint32]uint32)
			}
			for doc, count := range byDoc {
				out.FieldWordCounts[fieldID][doc] = count
			}
		}
		out.FacetValues = append(out.FacetValues, p.FacetValues...)
		out.GeoPoints = append(out.GeoPoints, p.GeoPoints...)
		out.Proximities = append(out.Proximities, p.Proximities...)
		mergeBitsets(out.ExistsBits, p.ExistsBits)
		mergeBitsets(out.NullBits, p.NullBits)
		mergeBitsets(out.EmptyBits, p.EmptyBits)
		out.Failures = append(out.Failures, p.Failures...)
	}
	return out
}

func mergeBitsets(dst, src map[uint16]*bitset.Set) {
	for k, v := range src {
		if dst[k] == nil {
			dst[k] = bitset.New()
		}
		dst[k] = bitset.Union(dst[k], v)
	}
}

// DocumentsToRawDocs applies Transform (flatten + primary-key
// resolution) to a batch of arbitrary JSON documents, allocating
// document ids via ext.
func DocumentsToRawDocs(docsJSON []map[string]any, pkConfigured string, ext *docstore.ExternalIndex) ([]RawDoc, []DocFailure) {
	var out []RawDoc
	var failures []DocFailure
	for _, raw := range docsJSON {
		flat := docstore.Flatten(raw)
		pk, err := docstore.ResolvePrimaryKey(pkConfigured, flat)
		if err != nil {
			failures = append(failures, DocFailure{Err: err})
			continue
		}
		extID, err := docstore.ExternalIDOf(pk, flat)
		if err != nil {
			if pk == "" {
				extID = docstore.GenerateID()
				flat[pkConfigured] = extID
			} else {
				failures = append(failures, DocFailure{Err: err})
				continue
			}
		}
		docID, _ := ext.Allocate(extID)
		out = append(out, RawDoc{DocID: docID, ExternalID: extID, Flat: flat})
	}
	return out, failures
}
