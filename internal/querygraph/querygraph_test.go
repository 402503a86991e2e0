package querygraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizenheimer/meili/internal/tokenizer"
)

func TestBuildPlainWords(t *testing.T) {
	g := Build("quick brown fox", Options{Tokenizer: tokenizer.DefaultConfig()})
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, NodeWord, g.Nodes[0].Kind)
	assert.Equal(t, "quick", g.Nodes[0].Terms[0].Text)
}

func TestBuildQuotedPhrase(t *testing.T) {
	g := Build(`"brown fox" jumps`, Options{Tokenizer: tokenizer.DefaultConfig()})
	require.NotEmpty(t, g.Nodes)
	assert.Equal(t, NodePhrase, g.Nodes[0].Kind)
	assert.Equal(t, []string{"brown", "fox"}, g.Nodes[0].Phrase)
}

func TestBuildNegatedWord(t *testing.T) {
	g := Build("quick -brown", Options{Tokenizer: tokenizer.DefaultConfig()})
	var sawNegated bool
	for _, n := range g.Nodes {
		if n.Kind == NodeNegatedWord {
			sawNegated = true
			assert.Equal(t, "brown", n.Terms[0].Text)
		}
	}
	assert.True(t, sawNegated)
}

func TestTypoConfigMaxEdits(t *testing.T) {
	cfg := DefaultTypoConfig()
	assert.Equal(t, uint8(0), cfg.maxEditsFor("cat"))
	assert.Equal(t, uint8(1), cfg.maxEditsFor("quick"))
	assert.Equal(t, uint8(2), cfg.maxEditsFor("television"))
}
