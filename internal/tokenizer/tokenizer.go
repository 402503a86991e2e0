// Package tokenizer implements §4.3: segmenting text into words, tagging
// script, normalizing for the indexed form while preserving the original
// for highlighting, and emitting byte offsets (not character offsets)
// into the source string. It generalizes the
// teacher's analyzer.go pipeline (tokenize → lowercase → stopwords →
// length filter → stem) from a []string-in/[]string-out helper into a
// Token-stream analyzer that a writer/query-graph can consume for
// positions, script tags, and hard-separator resets.
package tokenizer

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
)

// Kind classifies a token the way §4.3 requires: word vs separator vs a
// hard separator that resets the proximity counter.
type Kind int

const (
	KindWord Kind = iota
	KindSeparator
	KindHardSeparator
)

// Script buckets the rules that need per-script tokenization behavior.
type Script int

const (
	ScriptLatin Script = iota
	ScriptCJK
	ScriptArabicHebrewThai
	ScriptOther
)

// Token is one unit of the analyzed stream.
type Token struct {
	Original string // as it appeared in the source, for highlighting
	Text     string // normalized indexed form (lowercase, folded)
	Kind     Kind
	Script   Script
	Start    int // byte offset of Original in the source string
	End      int
}

// Config mirrors the teacher's AnalyzerConfig, generalized with the
// settings-level tokenizer overrides from §6.3 (separatorTokens,
// nonSeparatorTokens, dictionary) and §4.3's configurable stop_words.
type Config struct {
	MinTokenLength  int
	EnableStemming  bool
	EnableStopwords bool
	StopWords       map[string]struct{}
	// Separators are extra runes treated as separators beyond the
	// Unicode-derived default (e.g. a client adding '_' to its schema);
	// only the runes isHardSeparator lists become hard separators.
	Separators map[rune]struct{}
	// NonSeparators strips runes from the default separator set (e.g. a
	// catalog that wants '-' kept inside SKUs like "ABC-123").
	NonSeparators map[rune]struct{}
	// Dictionary holds multi-word units tokenized as a single token, e.g.
	// "new york" → one token "new york", checked greedily left to right.
	Dictionary []string
}

// DefaultConfig mirrors the teacher's DefaultConfig() constructor.
func DefaultConfig() Config {
	return Config{
		MinTokenLength:  2,
		EnableStemming:  true,
		EnableStopwords: true,
		StopWords:       defaultStopwords,
	}
}

// Analyze runs the default pipeline, matching the teacher's Analyze entry
// point but returning positioned Tokens instead of bare strings.
func Analyze(text string) []Token {
	return AnalyzeWithConfig(text, DefaultConfig())
}

// AnalyzeWithConfig is the full §4.3 pipeline. Determinism: identical
// input and config always yield byte-for-byte identical output, since
// every stage below is a pure function of its input slice.
func AnalyzeWithConfig(text string, cfg Config) []Token {
	tokens := tokenize(text, cfg)
	tokens = applyDictionary(tokens, cfg.Dictionary)
	for i := range tokens {
		if tokens[i].Kind != KindWord {
			continue
		}
		tokens[i].Text = strings.ToLower(tokens[i].Original)
		tokens[i].Text = foldDiacritics(tokens[i].Text)
	}
	if cfg.EnableStopwords {
		tokens = filterStopwords(tokens, cfg)
	}
	tokens = filterLength(tokens, cfg.MinTokenLength)
	if cfg.EnableStemming {
		stemWords(tokens)
	}
	return tokens
}

// Words extracts just the normalized word text, the shape most callers
// (writer extraction, query parsing) consume.
func Words(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == KindWord {
			out = append(out, t.Text)
		}
	}
	return out
}

// tokenize performs Unicode segmentation with script-aware overrides:
// CJK runs are split per character (no whitespace between CJK words),
// everything else uses the teacher's FieldsFunc-style letter/number
// boundary, generalized to track offsets and hard-separator kind.
func tokenize(text string, cfg Config) []Token {
	var tokens []Token
	runes := []rune(text)
	i := 0
	byteOffset := 0
	for i < len(runes) {
		r := runes[i]
		w := len(string(r))
		if isSeparatorRune(r, cfg) {
			kind := KindSeparator
			if isHardSeparator(r) {
				kind = KindHardSeparator
			}
			tokens = append(tokens, Token{Original: string(r), Kind: kind, Start: byteOffset, End: byteOffset + w})
			i++
			byteOffset += w
			continue
		}
		if scriptOf(r) == ScriptCJK {
			// CJK: one character is one token.
			tokens = append(tokens, Token{Original: string(r), Kind: KindWord, Script: ScriptCJK, Start: byteOffset, End: byteOffset + w})
			i++
			byteOffset += w
			continue
		}
		// Accumulate a run of letters/numbers of the same broad script.
		start := i
		startByte := byteOffset
		sc := scriptOf(r)
		for i < len(runes) && !isSeparatorRune(runes[i], cfg) && scriptOf(runes[i]) != ScriptCJK && scriptOf(runes[i]) == sc {
			byteOffset += len(string(runes[i]))
			i++
		}
		word := string(runes[start:i])
		tokens = append(tokens, Token{Original: word, Kind: KindWord, Script: sc, Start: startByte, End: byteOffset})
	}
	return tokens
}

func isSeparatorRune(r rune, cfg Config) bool {
	if _, ok := cfg.NonSeparators[r]; ok {
		return false
	}
	if _, ok := cfg.Separators[r]; ok {
		return true
	}
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// isHardSeparator resets the proximity counter per §4.3: sentence
// terminators and line breaks, not simple inter-word punctuation.
func isHardSeparator(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', '\r':
		return true
	default:
		return false
	}
}

func scriptOf(r rune) Script {
	switch {
	case unicode.Is(unicode.Han, r), unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Hangul, r):
		return ScriptCJK
	case unicode.Is(unicode.Arabic, r), unicode.Is(unicode.Hebrew, r), unicode.Is(unicode.Thai, r):
		return ScriptArabicHebrewThai
	case unicode.IsLetter(r) || unicode.IsNumber(r):
		return ScriptLatin
	default:
		return ScriptOther
	}
}

// foldDiacritics strips combining marks the quick way (covers the common
// Latin-1 accented range used by the test corpus) without pulling in a
// full Unicode normalization dependency the pack doesn't otherwise use.
func foldDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := diacriticFold[r]; ok {
			b.WriteRune(folded)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var diacriticFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c',
}

func applyDictionary(tokens []Token, dict []string) []Token {
	if len(dict) == 0 {
		return tokens
	}
	// Greedy left-to-right scan: at each position the first dictionary
	// entry, in list order, whose words match is taken.
	var out []Token
	for i := 0; i < len(tokens); {
		matched := false
		for _, phrase := range dict {
			parts := strings.Fields(phrase)
			if len(parts) < 2 || i+len(parts) > len(tokens) {
				continue
			}
			if matchesPhrase(tokens[i:i+len(parts)], parts) {
				merged := tokens[i]
				merged.Text = strings.ToLower(phrase)
				merged.End = tokens[i+len(parts)-1].End
				out = append(out, merged)
				i += len(parts)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return out
}

func matchesPhrase(toks []Token, parts []string) bool {
	for i, tok := range toks {
		if tok.Kind != KindWord || !strings.EqualFold(tok.Original, parts[i]) {
			return false
		}
	}
	return true
}

func filterStopwords(tokens []Token, cfg Config) []Token {
	out := make([]Token, 0, len(tokens))
	sw := cfg.StopWords
	if sw == nil {
		sw = defaultStopwords
	}
	for _, t := range tokens {
		if t.Kind == KindWord {
			if _, stop := sw[t.Text]; stop {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func filterLength(tokens []Token, minLen int) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == KindWord && len(t.Text) < minLen {
			continue
		}
		out = append(out, t)
	}
	return out
}

// stemWords applies the Snowball (Porter2) English stemmer in place, the
// teacher's stemmerFilter. Non-Latin scripts are left unstemmed — see
// DESIGN.md on why no multi-language stemmer from the pack was wired.
func stemWords(tokens []Token) {
	for i := range tokens {
		if tokens[i].Kind == KindWord && tokens[i].Script == ScriptLatin {
			tokens[i].Text = snowballeng.Stem(tokens[i].Text, false)
		}
	}
}
