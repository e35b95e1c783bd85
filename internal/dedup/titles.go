package dedup

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// NormalizeTitle normalizes a publication title for comparison:
//   - Converts to lowercase
//   - Replaces all characters that are not letters or digits with a space,
//     so hyphenation and punctuation variants compare equal
//   - Collapses runs of separators to a single space
//   - Trims leading and trailing whitespace
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false

	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		default:
			// Whitespace, punctuation, and symbols all separate tokens.
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

// TitleSimilarity computes the similarity between two titles as
// 1 - editDistance/maxLen over the normalized forms. Returns 1.0 when both
// normalize to the empty string and 0.0 when only one does.
func TitleSimilarity(a, b string) float64 {
	normA := NormalizeTitle(a)
	normB := NormalizeTitle(b)

	if normA == "" && normB == "" {
		return 1.0
	}
	if normA == "" || normB == "" {
		return 0.0
	}
	if normA == normB {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(normA, normB)
	maxLen := len([]rune(normA))
	if l := len([]rune(normB)); l > maxLen {
		maxLen = l
	}

	return 1.0 - float64(distance)/float64(maxLen)
}
