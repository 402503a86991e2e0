// Package filter implements §4.9 and §6.4: a recursive-descent parser for
// the filter grammar (expr/or/and/unary/atom/geo/leaf), producing a typed
// AST with 1-based line:column spans on error, and an evaluator that
// threads a running universe bitmap through AND/OR/NOT per leaf result.
//
// Grounded on the teacher's query.go QueryBuilder, which already drives
// an AND/OR/NOT bitmap-stack evaluator (blaze's NewQuery().And()/Or()
// chain over InvertedIndex.GetDocumentsFor); here the boolean algebra is
// generalized to operate over facet/geo/word leaf evaluators instead of
// single-term postings lookups, and a real recursive-descent parser
// replaces the fluent builder since the spec needs to parse a grammar
// from text rather than accept calls from Go code.
package filter

import (
	"errors"
	"fmt"

	"github.com/wizenheimer/meili/internal/bitset"
)

// ErrContainsDisabled is returned by an Evaluator's Contains method when
// CONTAINS/STARTS WITH is used without the contains-filter feature flag
// enabled (§4.9: "require a feature flag; otherwise they fail with a
// specific error").
var ErrContainsDisabled = errors.New("filter: CONTAINS/STARTS WITH requires the contains-filter feature to be enabled")

// MaxDepth is the FilterTooDeep ceiling from §4.9.
const MaxDepth = 2000

// Op enumerates comparison/logical operators.
type Op int

const (
	OpEq Op = iota
	OpNotEq
	OpLt
	OpLte
	OpGt
	OpGte
	OpTo // range:  field lo TO hi
	OpExists
	OpNotExists
	OpIsNull
	OpIsNotNull
	OpIsEmpty
	OpIsNotEmpty
	OpContains
	OpStartsWith
	OpGeoRadius
	OpGeoBoundingBox
	OpAnd
	OpOr
	OpNot
)

// Span is a 1-based line:column position range within the filter source.
type Span struct {
	StartLine, StartCol int
	EndLine, EndCol      int
}

// Node is one AST node: either a logical combinator (And/Or/Not) with
// Children, or a leaf comparison against Field/Value(s).
type Node struct {
	Op       Op
	Span     Span
	Children []*Node

	Field string
	// Leaf operands; interpretation depends on Op.
	Str    string
	Num    float64
	NumLo  float64
	NumHi  float64
	Strs   []string // IN-list values
	Lat    float64
	Lng    float64
	Radius float64 // meters
	BoxNE  [2]float64
	BoxSW  [2]float64
}

// ParseError reports a syntax error with its source span.
type ParseError struct {
	Span    Span
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.StartLine, e.Span.StartCol, e.Message)
}

// Parse parses a filter expression string into an AST.
func Parse(src string) (*Node, error) {
	p := &parser{lex: newLexer(src)}
	p.advance()
	n, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errf("unexpected trailing input %q", p.tok.text)
	}
	return n, nil
}

// Evaluator resolves leaf nodes to docid sets; callers supply one that
// knows how to reach the facet/word/geo databases for the active index.
type Evaluator interface {
	// Universe is every live document id, used as the base for NOT.
	Universe() *bitset.Set
	Eq(field, value string) (*bitset.Set, error)
	NumCompare(field string, op Op, value float64) (*bitset.Set, error)
	Range(field string, lo, hi float64) (*bitset.Set, error)
	Exists(field string) (*bitset.Set, error)
	IsNull(field string) (*bitset.Set, error)
	IsEmpty(field string) (*bitset.Set, error)
	Contains(field, substr string, op Op) (*bitset.Set, error)
	GeoRadius(field string, lat, lng, radiusMeters float64) (*bitset.Set, error)
	GeoBoundingBox(field string, ne, sw [2]float64) (*bitset.Set, error)
}

// Eval evaluates the AST against ev, threading a running bitmap through
// each combinator exactly as the teacher's QueryBuilder threads its
// bitmap stack through And/Or/Not.
func Eval(n *Node, ev Evaluator) (*bitset.Set, error) {
	switch n.Op {
	case OpAnd:
		acc := ev.Universe()
		for _, c := range n.Children {
			r, err := Eval(c, ev)
			if err != nil {
				return nil, err
			}
			acc = bitset.Intersect(acc, r)
		}
		return acc, nil
	case OpOr:
		acc := bitset.New()
		for _, c := range n.Children {
			r, err := Eval(c, ev)
			if err != nil {
				return nil, err
			}
			acc = bitset.Union(acc, r)
		}
		return acc, nil
	case OpNot:
		r, err := Eval(n.Children[0], ev)
		if err != nil {
			return nil, err
		}
		return bitset.Difference(ev.Universe(), r), nil
	case OpEq:
		return ev.Eq(n.Field, n.Str)
	case OpNotEq:
		r, err := ev.Eq(n.Field, n.Str)
		if err != nil {
			return nil, err
		}
		return bitset.Difference(ev.Universe(), r), nil
	case OpLt, OpLte, OpGt, OpGte:
		return ev.NumCompare(n.Field, n.Op, n.Num)
	case OpTo:
		return ev.Range(n.Field, n.NumLo, n.NumHi)
	case OpExists:
		return ev.Exists(n.Field)
	case OpNotExists:
		r, err := ev.Exists(n.Field)
		if err != nil {
			return nil, err
		}
		return bitset.Difference(ev.Universe(), r), nil
	case OpIsNull:
		return ev.IsNull(n.Field)
	case OpIsNotNull:
		r, err := ev.IsNull(n.Field)
		if err != nil {
			return nil, err
		}
		return bitset.Difference(ev.Universe(), r), nil
	case OpIsEmpty:
		return ev.IsEmpty(n.Field)
	case OpIsNotEmpty:
		r, err := ev.IsEmpty(n.Field)
		if err != nil {
			return nil, err
		}
		return bitset.Difference(ev.Universe(), r), nil
	case OpContains, OpStartsWith:
		return ev.Contains(n.Field, n.Str, n.Op)
	case OpGeoRadius:
		return ev.GeoRadius(n.Field, n.Lat, n.Lng, n.Radius)
	case OpGeoBoundingBox:
		return ev.GeoBoundingBox(n.Field, n.BoxNE, n.BoxSW)
	default:
		return nil, fmt.Errorf("filter: unhandled op %v", n.Op)
	}
}
