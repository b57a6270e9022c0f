// Package frame holds the two in-memory shapes a chunk takes on its way
// through the pipeline: Raw (string cells straight from the parser) and Frame
// (engineered, fully numeric rows). Both are row-major and sized to a single
// chunk; nothing here outlives one loop iteration.
package frame

// Raw is a bounded batch of raw records. Every row has len(Columns) cells; an
// empty string is a missing value.
type Raw struct {
	Columns []string
	Rows    [][]string

	// FirstLine is the 1-based input line of Rows[0] (header is line 1).
	FirstLine int
}

// Len returns the number of rows.
func (r *Raw) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Frame is an engineered chunk: numeric columns, 0/1 indicators and the
// target, all stored as float64.
type Frame struct {
	Columns []string
	Rows    [][]float64
}

// New allocates a Frame with n zeroed rows for the given columns. All rows
// share one backing array.
func New(columns []string, n int) *Frame {
	w := len(columns)
	backing := make([]float64, w*n)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = backing[i*w : (i+1)*w : (i+1)*w]
	}
	return &Frame{Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return f.Len() == 0 }

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	if f == nil {
		return -1
	}
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column copies out one column by name. ok is false when absent.
func (f *Frame) Column(name string) (vals []float64, ok bool) {
	j := f.ColumnIndex(name)
	if j < 0 {
		return nil, false
	}
	vals = make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		vals[i] = row[j]
	}
	return vals, true
}
