package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"loanprep/internal/config"
	"loanprep/internal/frame"
	"loanprep/internal/schema"
)

func init() {
	Register("arrow", func(cfg config.Sink) (Writer, error) { return NewArrow(cfg.Path, nil), nil })
}

// ArrowWriter writes an Arrow IPC file with one float64 field per schema
// column, in canonical order. Each Append becomes one record batch.
type ArrowWriter struct {
	path string
	mem  memory.Allocator

	f      *os.File
	fw     *ipc.FileWriter
	schema *arrow.Schema
	vals   [][]float64
}

// NewArrow returns a writer for path. A nil allocator uses the Go allocator.
func NewArrow(path string, mem memory.Allocator) *ArrowWriter {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &ArrowWriter{path: path, mem: mem}
}

// Begin creates the file and writes the schema.
func (w *ArrowWriter) Begin(_ context.Context, s schema.Schema) error {
	if w.f != nil {
		return ErrStarted
	}
	cols := s.Columns()
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c, Type: arrow.PrimitiveTypes.Float64}
	}
	md := arrow.NewMetadata([]string{FingerprintKey}, []string{s.Fingerprint()})
	w.schema = arrow.NewSchema(fields, &md)
	w.vals = make([][]float64, len(cols))

	f, err := createFile(w.path)
	if err != nil {
		return err
	}
	fw, err := ipc.NewFileWriter(f, ipc.WithSchema(w.schema), ipc.WithAllocator(w.mem))
	if err != nil {
		f.Close()
		return fmt.Errorf("arrow: open writer: %w", err)
	}
	w.f, w.fw = f, fw
	return nil
}

// Append converts f to a record batch and writes it.
func (w *ArrowWriter) Append(ctx context.Context, f *frame.Frame) (int64, error) {
	if w.fw == nil {
		return 0, ErrNotStarted
	}
	if err := checkWidth(f, len(w.vals)); err != nil {
		return 0, err
	}
	if f.Empty() {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Transpose into per-column slices.
	for j := range w.vals {
		col := w.vals[j][:0]
		for _, row := range f.Rows {
			col = append(col, row[j])
		}
		w.vals[j] = col
	}

	b := array.NewRecordBuilder(w.mem, w.schema)
	defer b.Release()
	for j, col := range w.vals {
		b.Field(j).(*array.Float64Builder).AppendValues(col, nil)
	}
	rec := b.NewRecord()
	defer rec.Release()

	if err := w.fw.Write(rec); err != nil {
		return 0, fmt.Errorf("arrow: write batch: %w", err)
	}
	return rec.NumRows(), nil
}

// Close writes the footer and closes the file.
func (w *ArrowWriter) Close() error {
	if w.f == nil {
		return nil
	}
	defer func() { w.f, w.fw = nil, nil }()

	err := w.fw.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close arrow: %w", err)
	}
	return nil
}
