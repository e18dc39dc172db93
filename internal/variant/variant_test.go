package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Variant
	}{
		{"ngs", NGS},
		{"Classic", Classic},
		{" NA ", NA},
		{"jp", JP},
		{"vita", Vita},
		{"raw", Raw},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}

	_, err := Parse("ps4")
	assert.Error(t, err)
}

func mustParse(t *testing.T, s string) Variant {
	t.Helper()
	v, err := Parse(s)
	require.NoError(t, err)
	return v
}

func TestSet_OfExpandsClassic(t *testing.T) {
	s := Of(Classic)
	for _, v := range []Variant{Classic, NA, JP, Vita} {
		assert.True(t, s.Has(v), v.String())
	}
	assert.False(t, s.Has(NGS))
	assert.False(t, s.Has(Raw))

	exact := Only(Classic)
	assert.True(t, exact.Has(Classic))
	assert.False(t, exact.Has(JP))
}

func TestVariant_Family(t *testing.T) {
	assert.True(t, NGS.IsNGS())
	assert.False(t, NGS.IsClassic())
	assert.True(t, Vita.IsClassic())
	assert.False(t, Raw.IsClassic())
	assert.False(t, Raw.IsNGS())
}
