package meili

import "github.com/wizenheimer/meili/internal/settingsapply"

// Settings is an index's resolved configuration (§6.3), persisted in
// the main settings record alongside the FST/synonyms/ranking rules.
type Settings struct {
	DisplayedAttributes []string // nil/empty means "*" (all)
	SearchableAttributes []string
	FilterableAttributes []string
	SortableAttributes   []string
	RankingRules         []string
	StopWords            []string
	Synonyms             map[string][]string
	DistinctAttribute    string
	ProximityPrecision   string // "byWord" | "byAttribute"
	TypoTolerance        settingsapply.TypoTolerance
	FacetingMaxValues    int
	PaginationMaxTotalHits int
	SearchCutoffMs       uint64
	PrefixSearch         string // "indexingTime" | "disabled"
	FacetSearch          bool
	PrimaryKey           string

	// ContainsFilter gates the CONTAINS/STARTS WITH filter operators
	// (§4.9), matching meilisearch's experimental-feature gating: these
	// two operators can table-scan every facet value, so they're off by
	// default and toggled separately from the tri-state settings patch.
	ContainsFilter bool
}

// DefaultSettings mirrors meilisearch's documented defaults, the same
// "Default*()" constructor idiom the teacher uses for BM25Parameters.
func DefaultSettings() Settings {
	return Settings{
		RankingRules: []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		ProximityPrecision: "byWord",
		TypoTolerance: settingsapply.TypoTolerance{
			Enabled:        true,
			MinWordSizeOne: 5,
			MinWordSizeTwo: 9,
		},
		FacetingMaxValues:      100,
		PaginationMaxTotalHits: 1000,
		PrefixSearch:           "indexingTime",
		FacetSearch:            true,
	}
}

// SettingsPatch is the tri-state patch applied by UpdateSettings,
// re-exporting internal/settingsapply.Patch at the package boundary.
type SettingsPatch = settingsapply.Patch

// Field re-exports the tri-state field wrapper.
type Field[T any] = settingsapply.Field[T]

func SetField[T any](v T) Field[T]   { return settingsapply.SetField(v) }
func ResetField[T any]() Field[T]    { return settingsapply.ResetField[T]() }
func UnsetField[T any]() Field[T]    { return settingsapply.Unset[T]() }

func applyPatch(s Settings, p SettingsPatch) Settings {
	if p.SearchableAttributes.State != settingsapply.NotSet {
		s.SearchableAttributes = resolveListField(p.SearchableAttributes, nil)
	}
	if p.FilterableAttributes.State != settingsapply.NotSet {
		s.FilterableAttributes = resolveListField(p.FilterableAttributes, nil)
	}
	if p.SortableAttributes.State != settingsapply.NotSet {
		s.SortableAttributes = resolveListField(p.SortableAttributes, nil)
	}
	if p.DisplayedAttributes.State != settingsapply.NotSet {
		s.DisplayedAttributes = resolveListField(p.DisplayedAttributes, nil)
	}
	if p.RankingRules.State != settingsapply.NotSet {
		def := []string{"words", "typo", "proximity", "attribute", "sort", "exactness"}
		s.RankingRules = resolveListField(p.RankingRules, def)
	}
	if p.StopWords.State != settingsapply.NotSet {
		s.StopWords = resolveListField(p.StopWords, nil)
	}
	if p.Synonyms.State == settingsapply.Set {
		s.Synonyms = p.Synonyms.Value
	} else if p.Synonyms.State == settingsapply.Reset {
		s.Synonyms = nil
	}
	if p.DistinctAttribute.State == settingsapply.Set {
		s.DistinctAttribute = p.DistinctAttribute.Value
	} else if p.DistinctAttribute.State == settingsapply.Reset {
		s.DistinctAttribute = ""
	}
	if p.TypoTolerance.State == settingsapply.Set {
		s.TypoTolerance = p.TypoTolerance.Value
	} else if p.TypoTolerance.State == settingsapply.Reset {
		s.TypoTolerance = DefaultSettings().TypoTolerance
	}
	if p.FacetingMaxValues.State == settingsapply.Set {
		s.FacetingMaxValues = p.FacetingMaxValues.Value
	} else if p.FacetingMaxValues.State == settingsapply.Reset {
		s.FacetingMaxValues = DefaultSettings().FacetingMaxValues
	}
	if p.ProximityPrecision.State == settingsapply.Set {
		s.ProximityPrecision = p.ProximityPrecision.Value
	} else if p.ProximityPrecision.State == settingsapply.Reset {
		s.ProximityPrecision = "byWord"
	}
	if p.PrimaryKey.State == settingsapply.Set {
		s.PrimaryKey = p.PrimaryKey.Value
	}
	return s
}

func resolveListField(f Field[[]string], def []string) []string {
	switch f.State {
	case settingsapply.Set:
		return f.Value
	case settingsapply.Reset:
		return def
	default:
		return nil
	}
}
