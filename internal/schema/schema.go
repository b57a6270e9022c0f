// Package schema holds the canonical output schema of a run: the ordered
// column list discovered from the sample chunk. Every later chunk is aligned
// to it before being written, so all output rows share one layout.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"

	"loanprep/internal/frame"
)

// ErrEmpty is returned by Discover when no columns are given.
var ErrEmpty = errors.New("schema: no columns")

// Schema is an immutable, ordered set of output column names. The zero value
// has no columns.
type Schema struct {
	columns     []string
	index       map[string]int
	fingerprint string
}

// Discover builds a Schema from the columns of the engineered sample. Names
// must be non-empty and unique.
func Discover(columns []string) (Schema, error) {
	if len(columns) == 0 {
		return Schema{}, ErrEmpty
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			return Schema{}, fmt.Errorf("schema: column %d has an empty name", i)
		}
		if j, dup := index[c]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate column %q at %d and %d", c, j, i)
		}
		index[c] = i
	}
	cols := slices.Clone(columns)
	return Schema{columns: cols, index: index, fingerprint: fingerprint(cols)}, nil
}

// fingerprint hashes the ordered names. The separator cannot occur in a
// header name, so ["ab","c"] and ["a","bc"] hash differently.
func fingerprint(cols []string) string {
	h := xxh3.New()
	for _, c := range cols {
		_, _ = h.WriteString(c)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Columns returns a copy of the ordered column names.
func (s Schema) Columns() []string { return slices.Clone(s.columns) }

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.columns) }

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Fingerprint returns the hex xxh3 hash of the ordered column names.
func (s Schema) Fingerprint() string { return s.fingerprint }

// Matches reports whether cols equals the schema column list exactly.
func (s Schema) Matches(cols []string) bool { return slices.Equal(s.columns, cols) }

// Extra returns the chunk columns that are not part of the schema, in chunk
// order. Align drops these.
func (s Schema) Extra(cols []string) []string {
	var out []string
	for _, c := range cols {
		if _, ok := s.index[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Align returns a frame with exactly the schema's columns, in schema order.
// Schema columns missing from f are zero-filled; columns of f that the schema
// does not know are discarded. f is never modified. When f already has the
// schema layout it is returned as is.
func (s Schema) Align(f *frame.Frame) *frame.Frame {
	if f == nil {
		return frame.New(s.columns, 0)
	}
	if s.Matches(f.Columns) {
		return f
	}

	// src[j] is the column of f feeding schema column j, or -1.
	src := make([]int, len(s.columns))
	for j := range src {
		src[j] = -1
	}
	for i, c := range f.Columns {
		if j, ok := s.index[c]; ok && src[j] < 0 {
			src[j] = i
		}
	}

	out := frame.New(s.columns, f.Len())
	for r, row := range f.Rows {
		dst := out.Rows[r]
		for j, i := range src {
			if i >= 0 {
				dst[j] = row[i]
			}
		}
	}
	return out
}
