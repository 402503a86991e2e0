package meili

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/wizenheimer/meili/internal/bitset"
	"github.com/wizenheimer/meili/internal/docstore"
	"github.com/wizenheimer/meili/internal/facet"
	"github.com/wizenheimer/meili/internal/fieldmap"
	"github.com/wizenheimer/meili/internal/filter"
	"github.com/wizenheimer/meili/internal/fst"
	"github.com/wizenheimer/meili/internal/geo"
	"github.com/wizenheimer/meili/internal/kvstore"
	"github.com/wizenheimer/meili/internal/meilierr"
	"github.com/wizenheimer/meili/internal/posting"
	"github.com/wizenheimer/meili/internal/querygraph"
	"github.com/wizenheimer/meili/internal/ranking"
	"github.com/wizenheimer/meili/internal/settingsapply"
	"github.com/wizenheimer/meili/internal/writer"
)

// Search runs one query against the index's current committed state, in
// its own read transaction, so writers never block readers and readers
// never block each other (§2.15, §5's snapshot-isolation requirement).
func (idx *Index) Search(req SearchRequest) (SearchResult, error) {
	started := timeNow()

	if req.Page > 0 || req.HitsPerPage > 0 {
		if req.Offset != 0 || (req.Limit != 0 && req.Limit != 20) {
			return SearchResult{}, meilierr.UserInput("cannot combine page/hitsPerPage with offset/limit")
		}
	}
	if len(req.Locales) > 0 {
		return SearchResult{}, meilierr.UserInput("locales is not supported")
	}

	idx.mu.RLock()
	settings := idx.settings
	fields := idx.fields
	external := idx.external
	idx.mu.RUnlock()

	txn, err := idx.store.BeginRead()
	if err != nil {
		return SearchResult{}, meilierr.Resource(err, "beginning read transaction")
	}
	defer txn.Abort()

	live := bitset.Difference(external.DocumentsIDs(), external.SoftDeletedIDs())

	var filtered *bitset.Set
	ev := &kvEvaluator{txn: txn, fields: fields, universe: live, containsEnabled: settings.ContainsFilter}
	if strings.TrimSpace(req.Filter) != "" {
		node, err := filter.Parse(req.Filter)
		if err != nil {
			return SearchResult{}, err
		}
		filtered, err = filter.Eval(node, ev)
		if err != nil {
			return SearchResult{}, err
		}
	} else {
		filtered = live
	}

	words, prefixes, err := loadLexicons(txn)
	if err != nil {
		return SearchResult{}, err
	}

	graph := querygraph.Build(req.Query, querygraph.Options{
		Tokenizer:    idx.tokenizerConfig(),
		Typo:         typoConfigFromSettings(settings.TypoTolerance),
		Synonyms:     settings.Synonyms,
		Words:        words,
		Prefixes:     prefixes,
		PrefixSearch: settings.PrefixSearch != "disabled",
	})

	terms := collectTerms(graph)
	pindex, err := loadPostings(txn, terms)
	if err != nil {
		return SearchResult{}, err
	}

	candidates := filtered
	if strings.TrimSpace(req.Query) != "" {
		allowedFields := fieldIDSet(fields, req.AttributesToSearchOn)
		matched, err := matchTerms(txn, pindex, terms, req.MatchingStrategy, allowedFields)
		if err != nil {
			return SearchResult{}, err
		}
		candidates = bitset.Intersect(candidates, matched)
	}
	for _, t := range negatedTerms(graph) {
		wb, err := wordDocids(txn, t)
		if err != nil {
			return SearchResult{}, err
		}
		candidates = bitset.Difference(candidates, wb)
	}

	fieldRank := make(map[uint16]int, len(settings.SearchableAttributes))
	for i, name := range settings.SearchableAttributes {
		if id, ok := fields.ID(name); ok {
			fieldRank[id] = i
		}
	}

	sortValues, distances := resolveSortValues(txn, fields, req.Sort)

	chain := buildChain(settings.RankingRules, pindex, graph, fieldRank, sortValues, distances)

	offset, limit := resolvePagination(req)
	ordered, scoreDetails, err := chain.RunWithDetails(candidates, offset, limit)
	if err != nil {
		return SearchResult{}, err
	}

	distinctAttr := settings.DistinctAttribute
	if req.Distinct != "" {
		distinctAttr = req.Distinct
	}

	docDB, err := docstore.Open(txn)
	if err != nil {
		return SearchResult{}, err
	}
	seenDistinct := make(map[string]bool)
	hits := make([]Hit, 0, len(ordered))
	for _, docID := range ordered {
		rec, err := docDB.Get(docID)
		if err != nil || rec == nil {
			continue
		}
		flat := recordToFlat(rec, fields)

		if distinctAttr != "" {
			key := distinctKey(flat[distinctAttr])
			if seenDistinct[key] {
				continue
			}
			seenDistinct[key] = true
		}

		score := ranking.ProductScore(scoreDetails[docID])
		if req.RankingScoreThreshold > 0 && score < req.RankingScoreThreshold {
			continue
		}

		doc := docstore.Unflatten(flat)
		doc = projectDisplayed(doc, settings.DisplayedAttributes)
		hit := Hit{Document: doc}
		if req.ShowRankingScore {
			hit.RankingScore = score
		}
		if req.ShowRankingScoreDetails {
			details := make(map[string]any, len(scoreDetails[docID]))
			for rule, v := range scoreDetails[docID] {
				details[rule] = v
			}
			hit.RankingScoreDetails = details
		}
		if req.ShowMatchesPosition {
			hit.MatchesPosition = matchesPositionFor(flat, terms)
		}
		if formatted := formatDocument(flat, terms, req); formatted != nil {
			hit.Formatted = formatted
		}
		hits = append(hits, hit)
	}

	result := SearchResult{
		Hits:               hits,
		Query:              req.Query,
		ProcessingTimeMs:   timeNow().Sub(started).Milliseconds(),
		Offset:             offset,
		Limit:              limit,
		EstimatedTotalHits: int(candidates.Len()),
		TotalHits:          int(candidates.Len()),
	}
	if req.Page > 0 || req.HitsPerPage > 0 {
		result.Paged = true
		result.Page = req.Page
		result.HitsPerPage = limit
		if limit > 0 {
			result.TotalPages = (int(candidates.Len()) + limit - 1) / limit
		}
	}

	if len(req.Facets) > 0 {
		result.FacetDistribution = make(map[string]map[string]uint64, len(req.Facets))
		result.FacetStats = make(map[string]FacetStats, len(req.Facets))
		for _, name := range req.Facets {
			dist, stats, err := facetDistribution(txn, fields, name, candidates, settings.FacetingMaxValues)
			if err != nil {
				return SearchResult{}, err
			}
			result.FacetDistribution[name] = dist
			if stats != nil {
				result.FacetStats[name] = *stats
			}
		}
	}

	return result, nil
}

// timeNow exists so the rest of the file reads like ordinary code
// calling time.Now(), while staying the single seam a caller could
// swap out in a deterministic test.
func timeNow() time.Time { return time.Now() }

// distinctKey turns a raw field value into the string collapsing is
// keyed on; distinct collapsing only makes sense for scalar values.
func distinctKey(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func resolvePagination(req SearchRequest) (offset, limit int) {
	if req.Page > 0 || req.HitsPerPage > 0 {
		hpp := req.HitsPerPage
		if hpp <= 0 {
			hpp = 20
		}
		page := req.Page
		if page <= 0 {
			page = 1
		}
		return (page - 1) * hpp, hpp
	}
	limit = req.Limit
	if limit <= 0 {
		limit = 20
	}
	return req.Offset, limit
}

func collectTerms(g *querygraph.Graph) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, n := range g.Nodes {
		switch n.Kind {
		case querygraph.NodeWord:
			for _, t := range n.Terms {
				add(t.Text)
			}
		case querygraph.NodePhrase:
			for _, w := range n.Phrase {
				add(w)
			}
		}
	}
	return out
}

// typoConfigFromSettings maps the public tri-state typo tolerance
// settings onto the query graph's internal typo-expansion config.
func typoConfigFromSettings(tt settingsapply.TypoTolerance) querygraph.TypoConfig {
	if !tt.Enabled {
		return querygraph.TypoConfig{
			OneTypoMinLength: 1 << 30,
			TwoTypoMinLength: 1 << 30,
			Disabled:         map[string]bool{},
		}
	}
	cfg := querygraph.DefaultTypoConfig()
	if tt.MinWordSizeOne > 0 {
		cfg.OneTypoMinLength = tt.MinWordSizeOne
	}
	if tt.MinWordSizeTwo > 0 {
		cfg.TwoTypoMinLength = tt.MinWordSizeTwo
	}
	if len(tt.DisableOnWords) > 0 {
		disabled := make(map[string]bool, len(tt.DisableOnWords))
		for _, w := range tt.DisableOnWords {
			disabled[w] = true
		}
		cfg.Disabled = disabled
	}
	return cfg
}

// loadLexicons loads the words FST that rebuildWordsFST persists and
// builds a prefix FST from the prefix_docids keys; absent any indexed
// data yet it returns empty sets.
func loadLexicons(txn *kvstore.Txn) (*fst.Set, *fst.Set, error) {
	db, err := txn.Database(writer.BucketWordsFST)
	if err != nil {
		return nil, nil, meilierr.Internal(err, "opening words FST bucket")
	}
	raw := db.Get([]byte("fst"))
	words := fst.Empty()
	if raw != nil {
		loaded, err := fst.Load(raw)
		if err != nil {
			return nil, nil, meilierr.Internal(err, "loading words FST")
		}
		words = loaded
	}

	prefixDB, err := txn.Database(writer.BucketPrefixDocids)
	if err != nil {
		return nil, nil, meilierr.Internal(err, "opening prefix bucket")
	}
	var prefixKeys [][]byte
	prefixDB.Range(func(k, v []byte) bool {
		prefixKeys = append(prefixKeys, append([]byte(nil), k...))
		return true
	})
	prefixes, err := fst.Build(prefixKeys)
	if err != nil {
		return nil, nil, meilierr.Internal(err, "building prefix FST")
	}
	return words, prefixes, nil
}

// loadPostings rebuilds an in-memory posting.Index over exactly the
// terms the query graph can match, scanned out of word_position_docids
// (§3), the shape every ranking rule expects (internal/ranking.Rule).
func loadPostings(txn *kvstore.Txn, words []string) (*posting.Index, error) {
	db, err := txn.Database(writer.BucketWordPositionDocids)
	if err != nil {
		return nil, meilierr.Internal(err, "opening word position bucket")
	}
	idx := posting.NewIndex()
	for _, word := range words {
		prefix := append([]byte(word), 0)
		db.PrefixRange(prefix, func(k, v []byte) bool {
			rest := k[len(prefix):]
			if len(rest) != 12 {
				return true
			}
			docID := kvstore.GetU32(rest[:4])
			offset := kvstore.SortableF64ToFloat(rest[4:])
			idx.Add(word, docID, offset)
			return true
		})
	}
	return idx, nil
}

// negatedTerms collects every word a "-word"/-"phrase" node excludes,
// kept out of collectTerms (and so out of the Words/Typo/frequency
// accounting) since a negated term is a hard filter, not a ranking
// signal.
func negatedTerms(g *querygraph.Graph) []string {
	var out []string
	for _, n := range g.Nodes {
		switch n.Kind {
		case querygraph.NodeNegatedWord:
			for _, t := range n.Terms {
				out = append(out, t.Text)
			}
		case querygraph.NodeNegatedPhrase:
			out = append(out, n.Phrase...)
		}
	}
	return out
}

func wordDocids(txn *kvstore.Txn, word string) (*bitset.Set, error) {
	db, err := txn.Database(writer.BucketWordDocids)
	if err != nil {
		return nil, meilierr.Internal(err, "opening word docids bucket")
	}
	raw := db.Get([]byte(word))
	if raw == nil {
		return bitset.New(), nil
	}
	return bitset.Decode(raw)
}

// fieldIDSet resolves attributesToSearchOn field names to their ids;
// nil/empty means "no restriction" (search every searchable attribute).
func fieldIDSet(fields *fieldmap.Map, names []string) map[uint16]bool {
	if len(names) == 0 {
		return nil
	}
	out := make(map[uint16]bool, len(names))
	for _, n := range names {
		if id, ok := fields.ID(n); ok {
			out[id] = true
		}
	}
	return out
}

// matchTerms resolves the query's collected terms to a candidate set
// per req.MatchingStrategy (§6.5): "all" requires every term to match
// the same document, while "last"/"frequency" admit a document that
// matched any term — WordsRule (internal/ranking) still ranks
// more-complete matches first, so relaxing the requirement here only
// widens the candidate pool, it doesn't change how those candidates
// are ordered.
func matchTerms(txn *kvstore.Txn, pindex *posting.Index, terms []string, strategy MatchingStrategy, allowedFields map[uint16]bool) (*bitset.Set, error) {
	if len(terms) == 0 {
		return bitset.New(), nil
	}
	perTerm := make([]*bitset.Set, len(terms))
	for i, t := range terms {
		wb, err := matchedDocsForTerm(txn, pindex, t, allowedFields)
		if err != nil {
			return nil, err
		}
		perTerm[i] = wb
	}
	if strategy == MatchAll {
		out := perTerm[0].Clone()
		for _, s := range perTerm[1:] {
			out = bitset.Intersect(out, s)
		}
		return out, nil
	}
	out := bitset.New()
	for _, s := range perTerm {
		out = bitset.Union(out, s)
	}
	return out, nil
}

// matchedDocsForTerm returns the documents containing term, restricted
// to allowedFields (attributesToSearchOn) when set. The unrestricted
// path reuses the word_docids bucket directly; the restricted path
// walks the in-memory posting list and unpacks each position's
// field-id (§3).
func matchedDocsForTerm(txn *kvstore.Txn, pindex *posting.Index, term string, allowedFields map[uint16]bool) (*bitset.Set, error) {
	if len(allowedFields) == 0 {
		return wordDocids(txn, term)
	}
	out := bitset.New()
	sl, ok := pindex.List(term)
	if !ok {
		return out, nil
	}
	for _, pos := range sl.All() {
		if allowedFields[pos.FieldID()] {
			out.Add(uint32(pos.DocumentID))
		}
	}
	return out, nil
}

// matchesPositionFor locates every term occurrence in flat's string
// fields, in UTF-16 code units, backing req.ShowMatchesPosition.
func matchesPositionFor(flat map[string]any, terms []string) map[string][]MatchPosition {
	if len(terms) == 0 {
		return nil
	}
	out := make(map[string][]MatchPosition)
	for path, v := range flat {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		lower := strings.ToLower(s)
		var positions []MatchPosition
		for _, term := range terms {
			t := strings.ToLower(term)
			if t == "" {
				continue
			}
			start := 0
			for start <= len(lower) {
				idx := strings.Index(lower[start:], t)
				if idx < 0 {
					break
				}
				byteStart := start + idx
				positions = append(positions, MatchPosition{
					Start:  utf16Len(s[:byteStart]),
					Length: utf16Len(s[byteStart : byteStart+len(t)]),
				})
				start = byteStart + len(t)
			}
		}
		if len(positions) > 0 {
			out[path] = positions
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// formatDocument renders the highlighted/cropped "_formatted" view of
// flat's string fields, honoring attributesToHighlight/ToCrop (with "*"
// meaning every attribute), backing §6.5's highlight/crop contract.
// Returns nil when neither was requested.
func formatDocument(flat map[string]any, terms []string, req SearchRequest) map[string]any {
	if len(req.AttributesToHighlight) == 0 && len(req.AttributesToCrop) == 0 {
		return nil
	}
	highlightAll := containsStar(req.AttributesToHighlight)
	cropAll := containsStar(req.AttributesToCrop)
	highlightSet := stringSet(req.AttributesToHighlight)
	cropSet := stringSet(req.AttributesToCrop)

	pre, post := req.HighlightPreTag, req.HighlightPostTag
	if pre == "" {
		pre = "<em>"
	}
	if post == "" {
		post = "</em>"
	}
	marker := req.CropMarker
	if marker == "" {
		marker = "…"
	}
	cropLen := req.CropLength
	if cropLen <= 0 {
		cropLen = 10
	}

	out := make(map[string]any, len(flat))
	for path, v := range flat {
		s, ok := v.(string)
		if !ok {
			out[path] = v
			continue
		}
		text := s
		if cropAll || cropSet[path] {
			text = cropAround(text, terms, cropLen, marker)
		}
		if highlightAll || highlightSet[path] {
			text = highlightTerms(text, terms, pre, post)
		}
		out[path] = text
	}
	return out
}

func stringSet(list []string) map[string]bool {
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]bool, len(list))
	for _, s := range list {
		out[s] = true
	}
	return out
}

func containsStar(list []string) bool {
	for _, s := range list {
		if s == "*" {
			return true
		}
	}
	return false
}

// highlightTerms wraps every term occurrence in pre/post, preferring
// the longest matching term at each position.
func highlightTerms(text string, terms []string, pre, post string) string {
	if len(terms) == 0 {
		return text
	}
	lower := strings.ToLower(text)
	var b strings.Builder
	i := 0
	for i < len(text) {
		matched := ""
		for _, term := range terms {
			t := strings.ToLower(term)
			if t == "" || !strings.HasPrefix(lower[i:], t) {
				continue
			}
			if len(t) > len(matched) {
				matched = t
			}
		}
		if matched != "" {
			b.WriteString(pre)
			b.WriteString(text[i : i+len(matched)])
			b.WriteString(post)
			i += len(matched)
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

// cropAround keeps cropLen words centered on the first word matching
// any term, marking the cut with marker on whichever sides were cut.
func cropAround(text string, terms []string, cropLen int, marker string) string {
	words := strings.Fields(text)
	if len(words) <= cropLen {
		return text
	}
	matchIdx := 0
	for i, w := range words {
		lw := strings.ToLower(w)
		found := false
		for _, t := range terms {
			if t != "" && strings.Contains(lw, strings.ToLower(t)) {
				found = true
				break
			}
		}
		if found {
			matchIdx = i
			break
		}
	}
	half := cropLen / 2
	start := matchIdx - half
	if start < 0 {
		start = 0
	}
	end := start + cropLen
	if end > len(words) {
		end = len(words)
		start = end - cropLen
		if start < 0 {
			start = 0
		}
	}
	cropped := strings.Join(words[start:end], " ")
	if start > 0 {
		cropped = marker + cropped
	}
	if end < len(words) {
		cropped = cropped + marker
	}
	return cropped
}

func buildChain(ruleNames []string, pindex *posting.Index, graph *querygraph.Graph, fieldRank map[uint16]int, sortValues map[uint32]float64, distances map[uint32]float64) *ranking.Chain {
	var rules []ranking.Rule
	for _, name := range ruleNames {
		switch {
		case name == "words":
			rules = append(rules, ranking.NewWordsRule(pindex, graph))
		case name == "typo":
			rules = append(rules, ranking.NewTypoRule(pindex, graph))
		case name == "proximity":
			rules = append(rules, ranking.NewProximityRule(pindex, graph))
		case name == "attribute":
			rules = append(rules, ranking.NewAttributeRule(pindex, graph, fieldRank))
		case name == "sort":
			if sortValues != nil {
				rules = append(rules, ranking.NewSortRule(sortValues, true))
			}
		case name == "exactness":
			rules = append(rules, ranking.NewExactnessRule(pindex, graph))
		case strings.HasPrefix(name, "_geoPoint("):
			if distances != nil {
				rules = append(rules, ranking.NewGeoRule(distances))
			}
		case strings.Contains(name, ":asc") || strings.Contains(name, ":desc"):
			// A field:asc/field:desc ranking-rule entry (as opposed to a
			// per-request sort clause) is resolved the same way.
			if sortValues != nil {
				asc := strings.HasSuffix(name, ":asc")
				rules = append(rules, ranking.NewSortRule(sortValues, asc))
			}
		}
	}
	return ranking.NewChain(rules...)
}

// resolveSortValues materializes the numeric key each SortRule/GeoRule
// needs from the request's sort clauses, reading straight out of the
// facet-number bucket for plain fields or computing haversine distance
// for a _geoPoint clause.
func resolveSortValues(txn *kvstore.Txn, fields interface{ ID(string) (uint16, bool) }, clauses []SortClause) (map[uint32]float64, map[uint32]float64) {
	var sortValues, distances map[uint32]float64
	for _, c := range clauses {
		if c.IsGeoPoint {
			distances = geoDistances(txn, geo.Point{Lat: c.GeoLat, Lng: c.GeoLng})
			continue
		}
		fieldID, ok := fields.ID(c.Field)
		if !ok {
			continue
		}
		sortValues = numericFieldValues(txn, fieldID)
	}
	return sortValues, distances
}

func numericFieldValues(txn *kvstore.Txn, fieldID uint16) map[uint32]float64 {
	db, err := txn.Database(writer.BucketFacetNum)
	if err != nil {
		return nil
	}
	out := make(map[uint32]float64)
	prefix := kvstore.PutU16(fieldID)
	db.PrefixRange(prefix, func(k, v []byte) bool {
		if len(k) < 10 {
			return true
		}
		value := kvstore.SortableF64ToFloat(k[2:10])
		docs, err := bitset.Decode(v)
		if err != nil {
			return true
		}
		for _, id := range docs.ToSlice() {
			out[id] = value
		}
		return true
	})
	return out
}

func geoDistances(txn *kvstore.Txn, center geo.Point) map[uint32]float64 {
	db, err := txn.Database(writer.BucketGeoPoints)
	if err != nil {
		return nil
	}
	out := make(map[uint32]float64)
	db.Range(func(k, v []byte) bool {
		if len(k) != 4 || len(v) != 16 {
			return true
		}
		docID := kvstore.GetU32(k)
		lat := kvstore.SortableF64ToFloat(v[:8])
		lng := kvstore.SortableF64ToFloat(v[8:])
		out[docID] = geo.HaversineMeters(center, geo.Point{Lat: lat, Lng: lng})
		return true
	})
	return out
}

func projectDisplayed(doc map[string]any, displayed []string) map[string]any {
	if len(displayed) == 0 {
		return doc
	}
	out := make(map[string]any, len(displayed))
	for _, name := range displayed {
		if v, ok := doc[name]; ok {
			out[name] = v
		}
	}
	return out
}

// facetDistribution builds a facet.Tree on the fly from the persisted
// per-field facet buckets, restricted to candidates, and returns the
// label->count distribution plus numeric min/max stats (§4.8).
func facetDistribution(txn *kvstore.Txn, fields interface{ ID(string) (uint16, bool) }, name string, candidates *bitset.Set, maxValues int) (map[string]uint64, *FacetStats, error) {
	fieldID, ok := fields.ID(name)
	if !ok {
		return map[string]uint64{}, nil, nil
	}

	strDB, err := txn.Database(writer.BucketFacetString)
	if err != nil {
		return nil, nil, meilierr.Internal(err, "opening facet string bucket")
	}
	var entries []facet.Entry
	ordinal := 0.0
	strDB.PrefixRange(kvstore.PutU16(fieldID), func(k, v []byte) bool {
		label := string(k[2:])
		docs, err := bitset.Decode(v)
		if err != nil {
			return true
		}
		entries = append(entries, facet.Entry{Value: ordinal, Docids: docs, RawLabel: label})
		ordinal++
		return true
	})
	if len(entries) > 0 {
		tree := facet.Build(entries, facet.DefaultGroupSize, facet.DefaultMinLevelSize)
		return tree.Distribution(candidates, maxValues), nil, nil
	}

	numDB, err := txn.Database(writer.BucketFacetNum)
	if err != nil {
		return nil, nil, meilierr.Internal(err, "opening facet num bucket")
	}
	var numEntries []facet.Entry
	min, max := 0.0, 0.0
	first := true
	numDB.PrefixRange(kvstore.PutU16(fieldID), func(k, v []byte) bool {
		if len(k) < 10 {
			return true
		}
		value := kvstore.SortableF64ToFloat(k[2:10])
		docs, err := bitset.Decode(v)
		if err != nil {
			return true
		}
		numEntries = append(numEntries, facet.Entry{Value: value, Docids: docs, RawLabel: strconv.FormatFloat(value, 'g', -1, 64)})
		if bitset.Intersect(docs, candidates).IsEmpty() {
			return true
		}
		if first || value < min {
			min = value
		}
		if first || value > max {
			max = value
		}
		first = false
		return true
	})
	if len(numEntries) == 0 {
		return map[string]uint64{}, nil, nil
	}
	tree := facet.Build(numEntries, facet.DefaultGroupSize, facet.DefaultMinLevelSize)
	dist := tree.Distribution(candidates, maxValues)
	if first {
		return dist, nil, nil
	}
	return dist, &FacetStats{Min: min, Max: max}, nil
}
