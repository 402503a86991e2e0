package settingsapply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsPrimaryKeyChange(t *testing.T) {
	p := Patch{PrimaryKey: SetField("id")}
	err := Validate(p, true)
	require.Error(t, err)
}

func TestValidateRejectsBadTypoOrdering(t *testing.T) {
	p := Patch{TypoTolerance: SetField(TypoTolerance{MinWordSizeOne: 9, MinWordSizeTwo: 5})}
	err := Validate(p, false)
	require.Error(t, err)
}

func TestValidateRejectsTooManyFacetValues(t *testing.T) {
	p := Patch{FacetingMaxValues: SetField(MaxFacetValues + 1)}
	err := Validate(p, false)
	require.Error(t, err)
}

func TestValidateAcceptsGoodPatch(t *testing.T) {
	p := Patch{
		TypoTolerance:     SetField(TypoTolerance{MinWordSizeOne: 5, MinWordSizeTwo: 9}),
		FacetingMaxValues: SetField(100),
	}
	assert.NoError(t, Validate(p, false))
}

func TestClassifyFullReindexOnSearchable(t *testing.T) {
	p := Patch{SearchableAttributes: SetField([]string{"title"})}
	assert.Equal(t, ScopeFull, Classify(p))
}

func TestClassifyFacetsOnlyOnFilterable(t *testing.T) {
	p := Patch{FilterableAttributes: SetField([]string{"genre"})}
	assert.Equal(t, ScopeFacetsOnly, Classify(p))
}

func TestClassifyNoneWhenUntouched(t *testing.T) {
	assert.Equal(t, ScopeNone, Classify(Patch{}))
}

func TestApplyResetUsesDefault(t *testing.T) {
	current := SetField(42)
	patch := ResetField[int]()
	result, changed := Apply(current, patch, 0)
	assert.True(t, changed)
	assert.Equal(t, 0, result.Value)
}

func TestApplyNotSetKeepsCurrent(t *testing.T) {
	current := SetField(42)
	patch := Unset[int]()
	result, changed := Apply(current, patch, 0)
	assert.False(t, changed)
	assert.Equal(t, 42, result.Value)
}
