// Package mapping resolves raw billing export headers into canonical fields.
package mapping

import "strings"

// Normalize folds a raw header into a comparable token. Case, separator
// characters (space, hyphen, underscore, slash, dot) and surrounding
// whitespace are all irrelevant: "Provider Name", "provider-name" and
// "provider_name" normalize identically.
func Normalize(header string) string {
	var b strings.Builder
	b.Grow(len(header))
	for _, r := range strings.TrimSpace(header) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

// ResolveHeaders maps each field to the first raw header (original casing)
// whose normalized form matches one of the field's candidates. Fields with no
// match resolve to the empty string; downstream code tolerates missing
// optional columns.
func ResolveHeaders(table Table, rawHeaders []string) map[string]string {
	normalized := make(map[string]string, len(rawHeaders))
	for _, raw := range rawHeaders {
		key := Normalize(raw)
		if key == "" {
			continue
		}
		if _, seen := normalized[key]; !seen {
			normalized[key] = raw
		}
	}

	resolved := make(map[string]string, len(table))
	for _, field := range table {
		resolved[field.Name] = ""
		for _, candidate := range field.Candidates {
			if raw, ok := normalized[Normalize(candidate)]; ok {
				resolved[field.Name] = raw
				break
			}
		}
	}
	return resolved
}
