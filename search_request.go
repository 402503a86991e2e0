package meili

// MatchingStrategy controls how many query words must match (§6.5).
type MatchingStrategy string

const (
	MatchLast      MatchingStrategy = "last"
	MatchAll       MatchingStrategy = "all"
	MatchFrequency MatchingStrategy = "frequency"
)

// SortClause is one "field:asc|desc" or "_geoPoint(lat,lng):asc|desc"
// entry from a search request's sort list.
type SortClause struct {
	Field      string
	Ascending  bool
	IsGeoPoint bool
	GeoLat     float64
	GeoLng     float64
}

// SearchRequest is the public search contract (§6.5).
type SearchRequest struct {
	Query  string
	Offset int
	Limit  int

	// Page/HitsPerPage is the alternative pagination mode; must not be
	// combined with Offset/Limit (validated in Search).
	Page         int
	HitsPerPage  int

	Filter string
	Sort   []SortClause
	Facets []string

	AttributesToRetrieve  []string
	AttributesToHighlight []string
	AttributesToCrop      []string
	CropLength            int
	CropMarker            string
	HighlightPreTag       string
	HighlightPostTag      string

	ShowMatchesPosition     bool
	ShowRankingScore        bool
	ShowRankingScoreDetails bool
	RankingScoreThreshold   float64

	MatchingStrategy     MatchingStrategy
	AttributesToSearchOn []string
	Distinct             string
	Locales              []string
}

// DefaultSearchRequest mirrors the documented client defaults.
func DefaultSearchRequest(query string) SearchRequest {
	return SearchRequest{
		Query:            query,
		Limit:            20,
		MatchingStrategy: MatchLast,
		CropMarker:       "…",
		HighlightPreTag:  "<em>",
		HighlightPostTag: "</em>",
	}
}

// Hit is one search result: the stored document plus optional
// diagnostics requested via Show* flags.
type Hit struct {
	Document              map[string]any
	RankingScore          float64                    `json:"_rankingScore,omitempty"`
	RankingScoreDetails   map[string]any              `json:"_rankingScoreDetails,omitempty"`
	MatchesPosition       map[string][]MatchPosition `json:"_matchesPosition,omitempty"`
	// Formatted holds the highlighted/cropped rendering of Document's
	// fields, keyed by the same dotted attribute path, populated only
	// when AttributesToHighlight/AttributesToCrop was requested.
	Formatted map[string]any `json:"_formatted,omitempty"`
}

// MatchPosition locates one matched term within a field's text, in
// UTF-16 code units per the documented highlighting contract.
type MatchPosition struct {
	Start  int
	Length int
}

// SearchResult is the public search response (§6.5).
type SearchResult struct {
	Hits              []Hit
	Query             string
	ProcessingTimeMs  int64

	Offset int
	Limit  int

	Page        int
	HitsPerPage int
	TotalPages  int

	EstimatedTotalHits int
	TotalHits          int
	Paged              bool

	FacetDistribution map[string]map[string]uint64
	FacetStats        map[string]FacetStats
}

// FacetStats summarizes a numeric facet's min/max over the result set.
type FacetStats struct {
	Min float64
	Max float64
}
