package meili

import (
	"math"
	"strings"

	"github.com/wizenheimer/meili/internal/bitset"
	"github.com/wizenheimer/meili/internal/facet"
	"github.com/wizenheimer/meili/internal/fieldmap"
	"github.com/wizenheimer/meili/internal/filter"
	"github.com/wizenheimer/meili/internal/geo"
	"github.com/wizenheimer/meili/internal/kvstore"
	"github.com/wizenheimer/meili/internal/meilierr"
	"github.com/wizenheimer/meili/internal/writer"
)

// kvEvaluator backs filter.Eval with the persisted facet/exists/geo
// databases for one read transaction (§4.9). It is the concrete
// implementation filter.Evaluator's doc comment says callers must
// supply; internal/filter only threads the boolean algebra.
type kvEvaluator struct {
	txn      *kvstore.Txn
	fields   *fieldmap.Map
	universe *bitset.Set

	// containsEnabled gates CONTAINS/STARTS WITH behind the
	// contains-filter feature flag (§4.9).
	containsEnabled bool
}

func (e *kvEvaluator) Universe() *bitset.Set { return e.universe.Clone() }

func (e *kvEvaluator) Eq(field, value string) (*bitset.Set, error) {
	fieldID, ok := e.fields.ID(field)
	if !ok {
		return bitset.New(), nil
	}
	db, err := e.txn.Database(writer.BucketFacetString)
	if err != nil {
		return nil, meilierr.Internal(err, "opening facet string bucket")
	}
	key := kvstore.NewKey().U16(fieldID).Bytes([]byte(value)).Build()
	raw := db.Get(key)
	if raw == nil {
		return bitset.New(), nil
	}
	return bitset.Decode(raw)
}

func (e *kvEvaluator) NumCompare(field string, op filter.Op, value float64) (*bitset.Set, error) {
	fieldID, ok := e.fields.ID(field)
	if !ok {
		return bitset.New(), nil
	}
	tree, err := e.numericTree(fieldID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return bitset.New(), nil
	}
	const posInf = 1.0e308 * 10
	const negInf = -posInf
	switch op {
	case filter.OpLt:
		return tree.Range(negInf, prevFloat(value)), nil
	case filter.OpLte:
		return tree.Range(negInf, value), nil
	case filter.OpGt:
		return tree.Range(nextFloat(value), posInf), nil
	case filter.OpGte:
		return tree.Range(value, posInf), nil
	default:
		return nil, meilierr.Schema("filter: unsupported numeric comparison op %v", op)
	}
}

func (e *kvEvaluator) Range(field string, lo, hi float64) (*bitset.Set, error) {
	fieldID, ok := e.fields.ID(field)
	if !ok {
		return bitset.New(), nil
	}
	tree, err := e.numericTree(fieldID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return bitset.New(), nil
	}
	return tree.Range(lo, hi), nil
}

func (e *kvEvaluator) Exists(field string) (*bitset.Set, error) {
	return e.fieldBitmap(field, writer.BucketExists)
}

func (e *kvEvaluator) IsNull(field string) (*bitset.Set, error) {
	return e.fieldBitmap(field, writer.BucketNull)
}

func (e *kvEvaluator) IsEmpty(field string) (*bitset.Set, error) {
	return e.fieldBitmap(field, writer.BucketEmpty)
}

func (e *kvEvaluator) fieldBitmap(field, bucket string) (*bitset.Set, error) {
	fieldID, ok := e.fields.ID(field)
	if !ok {
		return bitset.New(), nil
	}
	db, err := e.txn.Database(bucket)
	if err != nil {
		return nil, meilierr.Internal(err, "opening %s bucket", bucket)
	}
	raw := db.Get(kvstore.PutU16(fieldID))
	if raw == nil {
		return bitset.New(), nil
	}
	return bitset.Decode(raw)
}

func (e *kvEvaluator) Contains(field, substr string, op filter.Op) (*bitset.Set, error) {
	if !e.containsEnabled {
		err := meilierr.UserInput("%s", filter.ErrContainsDisabled.Error())
		err.Err = filter.ErrContainsDisabled
		return nil, err
	}
	fieldID, ok := e.fields.ID(field)
	if !ok {
		return bitset.New(), nil
	}
	db, err := e.txn.Database(writer.BucketFacetString)
	if err != nil {
		return nil, meilierr.Internal(err, "opening facet string bucket")
	}
	out := bitset.New()
	var rangeErr error
	db.PrefixRange(kvstore.PutU16(fieldID), func(k, v []byte) bool {
		label := string(k[2:])
		var match bool
		switch op {
		case filter.OpStartsWith:
			match = strings.HasPrefix(label, substr)
		default:
			match = strings.Contains(label, substr)
		}
		if !match {
			return true
		}
		docs, err := bitset.Decode(v)
		if err != nil {
			rangeErr = err
			return false
		}
		out = bitset.Union(out, docs)
		return true
	})
	if rangeErr != nil {
		return nil, meilierr.Internal(rangeErr, "decoding facet string bucket")
	}
	return out, nil
}

func (e *kvEvaluator) GeoRadius(field string, lat, lng, radiusMeters float64) (*bitset.Set, error) {
	center := geo.Point{Lat: lat, Lng: lng}
	out := bitset.New()
	err := e.eachGeoPoint(func(docID uint32, p geo.Point) {
		if geo.WithinRadius(p, center, radiusMeters) {
			out.Add(docID)
		}
	})
	return out, err
}

func (e *kvEvaluator) GeoBoundingBox(field string, ne, sw [2]float64) (*bitset.Set, error) {
	box := geo.NewBoundingBox(geo.Point{Lat: ne[0], Lng: ne[1]}, geo.Point{Lat: sw[0], Lng: sw[1]})
	out := bitset.New()
	err := e.eachGeoPoint(func(docID uint32, p geo.Point) {
		if box.Contains(p) {
			out.Add(docID)
		}
	})
	return out, err
}

func (e *kvEvaluator) eachGeoPoint(fn func(docID uint32, p geo.Point)) error {
	db, err := e.txn.Database(writer.BucketGeoPoints)
	if err != nil {
		return meilierr.Internal(err, "opening geo points bucket")
	}
	db.Range(func(k, v []byte) bool {
		if len(k) != 4 || len(v) != 16 {
			return true
		}
		docID := kvstore.GetU32(k)
		lat := kvstore.SortableF64ToFloat(v[:8])
		lng := kvstore.SortableF64ToFloat(v[8:])
		fn(docID, geo.Point{Lat: lat, Lng: lng})
		return true
	})
	return nil
}

func (e *kvEvaluator) numericTree(fieldID uint16) (*facet.Tree, error) {
	db, err := e.txn.Database(writer.BucketFacetNum)
	if err != nil {
		return nil, meilierr.Internal(err, "opening facet num bucket")
	}
	var entries []facet.Entry
	var rangeErr error
	db.PrefixRange(kvstore.PutU16(fieldID), func(k, v []byte) bool {
		if len(k) < 10 {
			return true
		}
		value := kvstore.SortableF64ToFloat(k[2:10])
		docs, err := bitset.Decode(v)
		if err != nil {
			rangeErr = err
			return false
		}
		entries = append(entries, facet.Entry{Value: value, Docids: docs})
		return true
	})
	if rangeErr != nil {
		return nil, meilierr.Internal(rangeErr, "decoding facet num bucket")
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return facet.Build(entries, facet.DefaultGroupSize, facet.DefaultMinLevelSize), nil
}

// prevFloat/nextFloat nudge a boundary by one ULP so a half-open range
// query (< or >) can reuse the tree's inclusive Range.
func prevFloat(f float64) float64 {
	return math.Nextafter(f, math.Inf(-1))
}

func nextFloat(f float64) float64 {
	return math.Nextafter(f, math.Inf(1))
}
