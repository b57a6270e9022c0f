package features

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// NormalizeHeaders returns a new slice where every column name is trimmed and
// lowercased. A UTF-8 BOM on the first name is dropped and the result is NFC
// so that visually identical headers compare equal. Normalizing twice yields
// the same result as normalizing once.
func NormalizeHeaders(cols []string) []string {
	lower := cases.Lower(language.Und)
	out := make([]string, len(cols))
	for i, h := range cols {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = norm.NFC.String(lower.String(strings.TrimSpace(h)))
	}
	return out
}

// normalizeName applies header normalization to a single configured name.
func normalizeName(s string) string {
	return norm.NFC.String(cases.Lower(language.Und).String(strings.TrimSpace(s)))
}

// indexFirst maps each name to its first position. Later duplicates are
// returned separately, each reported once.
func indexFirst(cols []string) (map[string]int, []string) {
	idx := make(map[string]int, len(cols))
	var dups []string
	seenDup := map[string]bool{}
	for i, c := range cols {
		if _, ok := idx[c]; ok {
			if !seenDup[c] {
				seenDup[c] = true
				dups = append(dups, c)
			}
			continue
		}
		idx[c] = i
	}
	return idx, dups
}
