// Package querygraph implements §4.10: turning a raw search query into
// a graph of alternative term nodes the ranking rules walk — tokenize,
// detect quoted phrases, and attach typo/prefix/synonym alternatives to
// each position, plus negation nodes for "-word" and -"phrase" syntax.
// No n-gram compound alternatives are built.
//
// Tokenization reuses internal/tokenizer the same way the teacher's
// search.go reuses analyzer.Analyze() before querying the index; typo
// alternatives are resolved through internal/fst's Levenshtein search,
// which is itself grounded on the teacher's phrase/cover primitives now
// living in internal/posting.
package querygraph

import (
	"strings"

	"github.com/wizenheimer/meili/internal/fst"
	"github.com/wizenheimer/meili/internal/tokenizer"
)

// NodeKind classifies one position in the query graph.
type NodeKind int

const (
	NodeWord NodeKind = iota
	NodePhrase
	NodeNegatedWord
	NodeNegatedPhrase
)

// Term is one concrete alternative at a graph position: the exact word,
// a typo-tolerant variant, a prefix match, or a synonym.
type Term struct {
	Text      string
	IsExact   bool
	IsPrefix  bool
	IsTypo    bool
	TypoCost  uint8 // 0 = exact, 1-2 = edit distance
	IsSynonym bool
}

// Node is one position in the query graph.
type Node struct {
	Kind      NodeKind
	Phrase    []string // for NodePhrase/NodeNegatedPhrase
	Terms     []Term   // alternatives at this position (NodeWord only)
}

// Graph is the full parsed query: positions in reading order.
type Graph struct {
	Nodes []Node
}

// TypoConfig controls how many edits are tolerated per word length
// (§4.10/§4.12: min_word_size_for_typos -> min_one_typo/min_two_typos).
type TypoConfig struct {
	OneTypoMinLength int // default 5
	TwoTypoMinLength int // default 9
	Disabled         map[string]bool
}

func DefaultTypoConfig() TypoConfig {
	return TypoConfig{OneTypoMinLength: 5, TwoTypoMinLength: 9}
}

func (c TypoConfig) maxEditsFor(word string) uint8 {
	if c.Disabled[word] {
		return 0
	}
	n := len([]rune(word))
	switch {
	case n >= c.TwoTypoMinLength:
		return 2
	case n >= c.OneTypoMinLength:
		return 1
	default:
		return 0
	}
}

// Options configures Build.
type Options struct {
	Tokenizer tokenizer.Config
	Typo      TypoConfig
	Synonyms  map[string][]string
	Words     *fst.Set // words lexicon, for typo/prefix expansion
	Prefixes  *fst.Set
	PrefixSearch bool
}

// Build parses raw query text into a Graph, matching the teacher's
// "analyze first, then search" pipeline shape but producing a full
// alternative graph instead of a flat token slice.
func Build(query string, opts Options) *Graph {
	phraseRuns, plain := splitPhrases(query)
	g := &Graph{}
	for _, run := range phraseRuns {
		if run.isPhrase {
			kind := NodePhrase
			words := tokenizer.Words(tokenizer.AnalyzeWithConfig(run.text, opts.Tokenizer))
			if run.negated {
				kind = NodeNegatedPhrase
			}
			g.Nodes = append(g.Nodes, Node{Kind: kind, Phrase: words})
			continue
		}
		tokens := tokenizer.AnalyzeWithConfig(run.text, opts.Tokenizer)
		for _, tok := range tokens {
			if tok.Kind != tokenizer.KindWord {
				continue
			}
			word := tok.Text
			// The tokenizer splits a leading '-' off into its own
			// separator token (it isn't a letter/digit), so negation is
			// detected by checking the source text immediately before
			// this word's start rather than the token itself.
			negated := tok.Start > 0 && run.text[tok.Start-1] == '-' &&
				(tok.Start == 1 || run.text[tok.Start-2] == ' ')
			if negated {
				g.Nodes = append(g.Nodes, Node{Kind: NodeNegatedWord, Terms: []Term{{Text: word, IsExact: true}}})
				continue
			}
			g.Nodes = append(g.Nodes, Node{Kind: NodeWord, Terms: buildAlternatives(word, opts)})
		}
	}
	_ = plain
	return g
}

func buildAlternatives(word string, opts Options) []Term {
	terms := []Term{{Text: word, IsExact: true}}

	if syns, ok := opts.Synonyms[word]; ok {
		for _, s := range syns {
			terms = append(terms, Term{Text: s, IsSynonym: true})
		}
	}

	if opts.PrefixSearch && opts.Prefixes != nil {
		if keys, err := opts.Prefixes.PrefixKeys([]byte(word)); err == nil {
			for _, k := range keys {
				if string(k) != word {
					terms = append(terms, Term{Text: string(k), IsPrefix: true})
				}
			}
		}
	}

	maxEdits := opts.Typo.maxEditsFor(word)
	if maxEdits > 0 && opts.Words != nil {
		if keys, err := opts.Words.LevenshteinKeys(word, maxEdits); err == nil {
			for _, k := range keys {
				candidate := string(k)
				if candidate == word {
					continue
				}
				terms = append(terms, Term{Text: candidate, IsTypo: true, TypoCost: editCostHint(word, candidate, maxEdits)})
			}
		}
	}

	return terms
}

// editCostHint approximates the real edit distance without recomputing
// it (the FST automaton already guaranteed <= maxEdits); ranking only
// needs a coarse 1-vs-2 split to order Typo buckets.
func editCostHint(a, b string, maxEdits uint8) uint8 {
	if len(a) == len(b) {
		diff := 0
		ra, rb := []rune(a), []rune(b)
		for i := range ra {
			if i < len(rb) && ra[i] != rb[i] {
				diff++
			}
		}
		if diff <= 1 {
			return 1
		}
	}
	return maxEdits
}

type phraseRun struct {
	text     string
	isPhrase bool
	negated  bool
}

// splitPhrases scans for "..."/-"..." runs and returns the ordered list
// of phrase and plain-text segments, alongside the original query for
// callers that want it.
func splitPhrases(query string) ([]phraseRun, string) {
	var runs []phraseRun
	i := 0
	plainStart := 0
	flushPlain := func(end int) {
		if end > plainStart {
			runs = append(runs, phraseRun{text: query[plainStart:end], isPhrase: false})
		}
	}
	for i < len(query) {
		negated := query[i] == '-' && i+1 < len(query) && query[i+1] == '"'
		quoteAt := i
		if negated {
			quoteAt = i + 1
		}
		if quoteAt >= len(query) || query[quoteAt] != '"' {
			i++
			continue
		}
		end := strings.IndexByte(query[quoteAt+1:], '"')
		if end == -1 {
			i++
			continue
		}
		flushPlain(i)
		phrase := query[quoteAt+1 : quoteAt+1+end]
		runs = append(runs, phraseRun{text: phrase, isPhrase: true, negated: negated})
		i = quoteAt + 1 + end + 1
		plainStart = i
	}
	flushPlain(len(query))
	return runs, query
}
