package features

import (
	"math"
	"slices"
	"strings"
)

// Unknown fills a categorical column that has no values at all in a chunk.
const Unknown = "unknown"

// Median returns the median of the non-NaN values (mean of the middle two for
// an even count). ok is false when every value is NaN.
func Median(vals []float64) (float64, bool) {
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	n := len(present)
	if n == 0 {
		return 0, false
	}
	slices.Sort(present)
	if n%2 == 1 {
		return present[n/2], true
	}
	return (present[n/2-1] + present[n/2]) / 2, true
}

// imputeNumeric replaces NaN entries in place with the median, or fallback
// when the column is entirely missing.
func imputeNumeric(vals []float64, fallback float64) (fill float64, usedFallback bool) {
	fill, ok := Median(vals)
	if !ok {
		fill, usedFallback = fallback, true
	}
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = fill
		}
	}
	return fill, usedFallback
}

// normalizeCategory trims and lowercases a value; "" and "nan" (any case)
// become the missing marker "".
func normalizeCategory(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "nan" {
		return ""
	}
	return v
}

// Mode returns the most frequent non-empty value. Ties go to the
// lexicographically smallest value. ok is false when all values are empty.
func Mode(vals []string) (string, bool) {
	counts := make(map[string]int)
	for _, v := range vals {
		if v != "" {
			counts[v]++
		}
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, bestN > 0
}

// imputeCategorical replaces empty entries in place with the mode, or Unknown
// when the column has no values.
func imputeCategorical(vals []string) (fill string, allMissing bool) {
	fill, ok := Mode(vals)
	if !ok {
		fill, allMissing = Unknown, true
	}
	for i, v := range vals {
		if v == "" {
			vals[i] = fill
		}
	}
	return fill, allMissing
}
