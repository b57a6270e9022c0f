package features

import "strings"

// LabelMapper turns free-text outcomes into a binary target.
type LabelMapper struct {
	accept map[string]struct{}
	reject map[string]struct{}
}

// NewLabelMapper builds a mapper; literals are matched case-insensitively
// after trimming.
func NewLabelMapper(accept, reject []string) LabelMapper {
	return LabelMapper{accept: literalSet(accept), reject: literalSet(reject)}
}

// Map returns 1 for accepted, 0 for rejected. ok is false for anything else,
// and such rows are dropped.
func (m LabelMapper) Map(raw string) (y float64, ok bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if _, hit := m.accept[v]; hit {
		return 1, true
	}
	if _, hit := m.reject[v]; hit {
		return 0, true
	}
	return 0, false
}

func literalSet(in []string) map[string]struct{} {
	m := make(map[string]struct{}, len(in))
	for _, s := range in {
		m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}
