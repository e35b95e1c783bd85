package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase and punctuation separates tokens",
			input:    "CRISPR-Cas9: Gene Editing!",
			expected: "crispr cas9 gene editing",
		},
		{
			name:     "whitespace collapsed",
			input:    "  Gene   Editing \t Advances ",
			expected: "gene editing advances",
		},
		{
			name:     "punctuation runs collapse to one space",
			input:    "Gene editing -- a review (2021)",
			expected: "gene editing a review 2021",
		},
		{
			name:     "digits preserved",
			input:    "COVID-19 vaccines in 2021",
			expected: "covid 19 vaccines in 2021",
		},
		{
			name:     "hyphenation variants normalize identically",
			input:    "Meta-analysis of gene-editing outcomes",
			expected: "meta analysis of gene editing outcomes",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeTitle(tt.input))
		})
	}
}

func TestTitleSimilarity(t *testing.T) {
	t.Run("identical titles", func(t *testing.T) {
		assert.Equal(t, 1.0, TitleSimilarity("Gene Editing", "Gene Editing"))
	})

	t.Run("equal after normalization", func(t *testing.T) {
		assert.Equal(t, 1.0, TitleSimilarity("CRISPR-Cas9: Gene Editing", "crispr cas9 gene editing"))
	})

	t.Run("near-identical titles score above threshold", func(t *testing.T) {
		sim := TitleSimilarity(
			"CRISPR-Cas9 gene editing in human cells",
			"CRISPR-Cas9 gene editing in human cell",
		)
		assert.Greater(t, sim, DefaultTitleThreshold)
	})

	t.Run("unrelated titles score low", func(t *testing.T) {
		sim := TitleSimilarity(
			"CRISPR-Cas9 gene editing in human cells",
			"Deep learning for protein structure prediction",
		)
		assert.Less(t, sim, 0.5)
	})

	t.Run("empty titles", func(t *testing.T) {
		assert.Equal(t, 1.0, TitleSimilarity("", ""))
		assert.Equal(t, 0.0, TitleSimilarity("Gene Editing", ""))
	})

	t.Run("symmetric", func(t *testing.T) {
		a, b := "Gene editing advances", "Gene editing advance"
		assert.Equal(t, TitleSimilarity(a, b), TitleSimilarity(b, a))
	})
}
