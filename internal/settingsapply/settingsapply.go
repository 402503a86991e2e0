// Package settingsapply implements §4.12: the tri-state settings patch
// applier, its reindex-scope classification, and the validation rules
// that gate which patches are even acceptable (pk-once,
// min_one_typo <= min_two_typos, facet count <= 65535).
//
// There's no teacher precedent for a settings layer (blaze is
// hardcoded); the tri-state shape and reindex-scope table are grounded
// directly on spec.md §4.12 and §6.3, applying the same "config struct
// with a constructor and explicit validation" idiom the teacher uses
// for BM25Parameters/DefaultBM25Parameters.
package settingsapply

import (
	"github.com/wizenheimer/meili/internal/meilierr"
)

// State is a tri-state settings field: untouched, explicitly reset to
// the default, or explicitly set to a value.
type State int

const (
	NotSet State = iota
	Reset
	Set
)

// Field wraps one tri-state settings value.
type Field[T any] struct {
	State State
	Value T
}

func Unset[T any]() Field[T]        { return Field[T]{State: NotSet} }
func ResetField[T any]() Field[T]   { return Field[T]{State: Reset} }
func SetField[T any](v T) Field[T]  { return Field[T]{State: Set, Value: v} }

// Apply resolves a patch field against the current value and a default,
// returning the new value and whether it changed.
func Apply[T comparable](current Field[T], patch Field[T], def T) (Field[T], bool) {
	switch patch.State {
	case NotSet:
		return current, false
	case Reset:
		resetVal := Field[T]{State: Set, Value: def}
		return resetVal, current.Value != def || current.State != Set
	case Set:
		return patch, current.Value != patch.Value || current.State != Set
	default:
		return current, false
	}
}

// ReindexScope enumerates how much of the index must be rebuilt after a
// settings patch (§4.12).
type ReindexScope int

const (
	ScopeNone ReindexScope = iota
	ScopeWordsOnly
	ScopeFacetsOnly
	ScopeFull
)

// Patch mirrors §6.3's settings shape; every field is tri-state.
type Patch struct {
	SearchableAttributes   Field[[]string]
	FilterableAttributes   Field[[]string]
	SortableAttributes     Field[[]string]
	DisplayedAttributes    Field[[]string]
	RankingRules           Field[[]string]
	StopWords              Field[[]string]
	Synonyms               Field[map[string][]string]
	DistinctAttribute      Field[string]
	TypoTolerance          Field[TypoTolerance]
	FacetingMaxValues      Field[int]
	ProximityPrecision     Field[string] // "byWord" | "byAttribute"
	PrimaryKey             Field[string]
}

type TypoTolerance struct {
	Enabled          bool
	MinWordSizeOne   int
	MinWordSizeTwo   int
	DisableOnWords   []string
	DisableOnAttrs   []string
}

const MaxFacetValues = 65535

// Validate enforces §4.12's structural rules before any patch is
// allowed to apply.
func Validate(p Patch, primaryKeyAlreadySet bool) error {
	if p.PrimaryKey.State == Set && primaryKeyAlreadySet {
		return meilierr.UserInput("primary key is already set and cannot be changed")
	}
	if p.TypoTolerance.State == Set {
		tt := p.TypoTolerance.Value
		if tt.MinWordSizeOne > tt.MinWordSizeTwo {
			return meilierr.UserInput("minWordSizeForTypos.oneTypo (%d) must be <= twoTypos (%d)", tt.MinWordSizeOne, tt.MinWordSizeTwo)
		}
	}
	if p.FacetingMaxValues.State == Set && p.FacetingMaxValues.Value > MaxFacetValues {
		return meilierr.UserInput("faceting.maxValuesPerFacet (%d) exceeds the maximum of %d", p.FacetingMaxValues.Value, MaxFacetValues)
	}
	if p.ProximityPrecision.State == Set {
		v := p.ProximityPrecision.Value
		if v != "byWord" && v != "byAttribute" {
			return meilierr.UserInput("proximityPrecision must be byWord or byAttribute, got %q", v)
		}
	}
	return nil
}

// Classify returns the broadest reindex scope triggered by any field in
// the patch (§4.12: searchable/stopwords/synonyms/typo => full reindex
// of the word databases; filterable/sortable => facet rebuild only;
// displayed/ranking rules/distinct attribute => no reindex).
func Classify(p Patch) ReindexScope {
	scope := ScopeNone
	bump := func(s ReindexScope) {
		if s > scope {
			scope = s
		}
	}
	if p.SearchableAttributes.State != NotSet {
		bump(ScopeFull)
	}
	if p.StopWords.State != NotSet || p.Synonyms.State != NotSet {
		bump(ScopeFull)
	}
	if p.TypoTolerance.State != NotSet {
		bump(ScopeFull)
	}
	if p.ProximityPrecision.State != NotSet {
		bump(ScopeFull)
	}
	if p.FilterableAttributes.State != NotSet || p.SortableAttributes.State != NotSet {
		bump(ScopeFacetsOnly)
	}
	if p.FacetingMaxValues.State != NotSet {
		bump(ScopeFacetsOnly)
	}
	return scope
}
