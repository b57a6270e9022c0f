package features

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber coerces a raw cell to float64. Empty, unparseable and
// non-finite values are missing.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParsePercent strips one trailing '%' and parses the rest ("13.5%" -> 13.5).
func ParsePercent(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	return ParseNumber(s)
}

// ParseTerm extracts the leading integer token of a duration ("36 months" -> 36).
func ParseTerm(s string) (float64, bool) {
	n, ok := firstInt(s)
	return float64(n), ok
}

// ParseEmpLength maps employment tenure text to years: "< 1 year" -> 0,
// "10+ years" -> 10, otherwise the first integer ("3 years" -> 3).
func ParseEmpLength(s string) (float64, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return 0, false
	case strings.HasPrefix(v, "<"), strings.Contains(v, "less than"):
		return 0, true
	case strings.HasPrefix(v, "10+"), strings.Contains(v, "10 or more"):
		return 10, true
	}
	n, ok := firstInt(v)
	return float64(n), ok
}

// FicoScore combines the low/high bounds: their mean when both parse, the
// single parsed bound otherwise.
func FicoScore(low, high string) (float64, bool) {
	l, lok := ParseNumber(low)
	h, hok := ParseNumber(high)
	switch {
	case lok && hok:
		return (l + h) / 2, true
	case lok:
		return l, true
	case hok:
		return h, true
	}
	return 0, false
}

// firstInt returns the first run of ASCII digits in s.
func firstInt(s string) (int, bool) {
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
