package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_DisplayAndKey(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		raw     string
		display string
		key     string
	}{
		{"  Personal   Injury ", "Personal Injury", "personal injury"},
		{"Acme Law", "Acme Law", "acme law"},
		{"Car-Accident Lawyers!", "Car-Accident Lawyers!", "caraccident lawyers"},
		{"O'Brien & Sons", "O'Brien & Sons", "obrien sons"},
		{"ＳＥＯ Tools", "ＳＥＯ Tools", "seo tools"},
		{"Tab\tand\nnewline", "Tab and newline", "tab and newline"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, ok := n.Normalize(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.display, c.Display)
			assert.Equal(t, tt.key, c.Key)
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	n := NewNormalizer("Springfield")

	for _, raw := range []string{"", "   ", "a", "!", "?!.", "x.", "the", "THE", " and ", "springfield", "Springfield."} {
		_, ok := n.Normalize(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer()
	inputs := []string{
		"Acme Law",
		"  Personal Injury, Attorneys ",
		"e.́cole",
		"⒈ first place",
		"Straße Café",
		"İstanbul Hotels",
		"C++ Tutorials",
		"100% Organic — Coffee",
	}

	for _, raw := range inputs {
		c, ok := n.Normalize(raw)
		if !ok {
			continue
		}
		again, ok := n.Normalize(c.Key)
		require.True(t, ok, "key %q of %q was rejected on the second pass", c.Key, raw)
		assert.Equal(t, c.Key, again.Key, "normalize is not idempotent for %q", raw)
		assert.Equal(t, c.Key, again.Display)
	}
}

func TestNormalizer_MeaningfulTokens(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, 2, n.MeaningfulTokens("car accident"))
	assert.Equal(t, 3, n.MeaningfulTokens("car accident case"))
	assert.Equal(t, 0, n.MeaningfulTokens("in the of"))
	assert.Equal(t, 1, n.MeaningfulTokens("the lawyer"))
}

func TestNewNormalizerWithStopTerms(t *testing.T) {
	n := NewNormalizerWithStopTerms([]string{"Law"})

	_, ok := n.Normalize("law")
	assert.False(t, ok)

	c, ok := n.Normalize("the")
	require.True(t, ok, "default stop terms must not apply to an explicit list")
	assert.Equal(t, "the", c.Key)
}
