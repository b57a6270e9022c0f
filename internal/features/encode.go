package features

import "slices"

// IndicatorName is the one-hot column name for a category level.
func IndicatorName(column, level string) string {
	return column + "_" + level
}

// levels returns the distinct values of vals in sorted order.
func levels(vals []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// encoding is the one-hot layout of one categorical column: level -> output
// column offset.
type encoding struct {
	column string
	values []string
	offset map[string]int
}
