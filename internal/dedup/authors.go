// Package dedup resolves publications from multiple sources into unique
// records through identifier indexes and fuzzy matching of normalized titles
// and author lists.
package dedup

import (
	"strings"
	"unicode"
)

// NormalizeName normalizes an author name for comparison:
//   - Converts to lowercase
//   - Detects and reorders "Last, First" format to "First Last"
//   - Removes all non-letter, non-space characters (apostrophes, periods, hyphens, etc.)
//   - Collapses multiple spaces to a single space
//   - Trims leading and trailing whitespace
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToLower(name)

	// Handle "Last, First" format: split on comma, swap parts.
	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false

	for _, r := range name {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
		// All other characters (apostrophes, periods, hyphens) are dropped.
	}

	return strings.TrimRight(sb.String(), " ")
}

// Surname returns the last token of a normalized author name, which serves
// as the surname for matching purposes. Returns "" for empty names.
func Surname(name string) string {
	norm := NormalizeName(name)
	if norm == "" {
		return ""
	}
	parts := strings.Fields(norm)
	return parts[len(parts)-1]
}

// SharedSurname reports whether the two author lists share at least one
// surname token. Comparison is case-insensitive over normalized names.
// Either list being empty yields false: without authors on both sides there
// is no evidence the records describe the same work.
func SharedSurname(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	surnamesA := make(map[string]struct{}, len(a))
	for _, name := range a {
		if s := Surname(name); s != "" {
			surnamesA[s] = struct{}{}
		}
	}

	for _, name := range b {
		if s := Surname(name); s != "" {
			if _, ok := surnamesA[s]; ok {
				return true
			}
		}
	}

	return false
}

// UnionAuthors merges two ordered author lists, preserving the order of the
// primary list and appending authors from the secondary list whose surnames
// are not already present.
func UnionAuthors(primary, secondary []string) []string {
	if len(secondary) == 0 {
		return primary
	}
	if len(primary) == 0 {
		return secondary
	}

	seen := make(map[string]struct{}, len(primary))
	for _, name := range primary {
		if s := Surname(name); s != "" {
			seen[s] = struct{}{}
		}
	}

	merged := make([]string, len(primary), len(primary)+len(secondary))
	copy(merged, primary)

	for _, name := range secondary {
		s := Surname(name)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		merged = append(merged, name)
	}

	return merged
}
