package sink

import (
	"context"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"loanprep/internal/config"
	"loanprep/internal/frame"
	"loanprep/internal/schema"
)

func init() {
	Register("parquet", func(cfg config.Sink) (Writer, error) { return NewParquet(cfg.Path, cfg.Options) })
}

// FingerprintKey is the file metadata key carrying the schema fingerprint in
// parquet and arrow output.
const FingerprintKey = "loanprep.schema_fingerprint"

// ParquetWriter writes one required DOUBLE column per schema column. Each
// Append becomes at least one row group.
//
// The physical column order is the schema's column order.
//
// Options:
//   - compression (string; snappy|gzip|zstd|none; default snappy)
type ParquetWriter struct {
	path  string
	codec parquet.WriterOption

	f  *os.File
	pw *parquet.Writer
	// leaf[k] is the frame column stored in parquet column k.
	leaf []int
	buf  []parquet.Row
}

// NewParquet validates options and returns a writer for path.
func NewParquet(path string, opt config.Options) (*ParquetWriter, error) {
	w := &ParquetWriter{path: path}
	switch c := opt.String("compression", "snappy"); c {
	case "snappy":
		w.codec = parquet.Compression(&parquet.Snappy)
	case "gzip":
		w.codec = parquet.Compression(&parquet.Gzip)
	case "zstd":
		w.codec = parquet.Compression(&parquet.Zstd)
	case "none", "":
	default:
		return nil, fmt.Errorf("parquet: unknown compression %q", c)
	}
	return w, nil
}

// Begin creates the file and the parquet schema.
func (w *ParquetWriter) Begin(_ context.Context, s schema.Schema) error {
	if w.f != nil {
		return ErrStarted
	}
	ps := parquet.NewSchema("loanprep", newOrderedGroup(s.Columns()))

	fields := ps.Fields()
	w.leaf = make([]int, len(fields))
	for k, fld := range fields {
		w.leaf[k] = s.Index(fld.Name())
	}

	f, err := createFile(w.path)
	if err != nil {
		return err
	}
	opts := []parquet.WriterOption{ps}
	if w.codec != nil {
		opts = append(opts, w.codec)
	}
	w.f = f
	w.pw = parquet.NewWriter(f, opts...)
	w.pw.SetKeyValueMetadata(FingerprintKey, s.Fingerprint())
	return nil
}

// Append writes the rows of f and flushes them as a row group.
func (w *ParquetWriter) Append(ctx context.Context, f *frame.Frame) (int64, error) {
	if w.pw == nil {
		return 0, ErrNotStarted
	}
	if err := checkWidth(f, len(w.leaf)); err != nil {
		return 0, err
	}

	const batchSize = 1000
	var n int64
	for lo := 0; lo < f.Len(); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		hi := min(lo+batchSize, f.Len())
		w.buf = w.buf[:0]
		for _, src := range f.Rows[lo:hi] {
			row := make(parquet.Row, len(w.leaf))
			for k, j := range w.leaf {
				row[k] = parquet.DoubleValue(src[j]).Level(0, 0, k)
			}
			w.buf = append(w.buf, row)
		}
		written, err := w.pw.WriteRows(w.buf)
		n += int64(written)
		if err != nil {
			return n, fmt.Errorf("parquet: write rows at %d: %w", lo, err)
		}
	}
	if err := w.pw.Flush(); err != nil {
		return n, fmt.Errorf("parquet: flush: %w", err)
	}
	return n, nil
}

// Close writes the footer and closes the file.
func (w *ParquetWriter) Close() error {
	if w.f == nil {
		return nil
	}
	defer func() { w.f, w.pw = nil, nil }()

	err := w.pw.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close parquet: %w", err)
	}
	return nil
}

// orderedGroup is a parquet.Group whose fields keep the order of names.
// parquet.Group alone sorts its fields by name.
type orderedGroup struct {
	parquet.Group
	names []string
}

func newOrderedGroup(names []string) orderedGroup {
	g := orderedGroup{Group: make(parquet.Group, len(names)), names: names}
	for _, c := range names {
		g.Group[c] = parquet.Leaf(parquet.DoubleType)
	}
	return g
}

func (g orderedGroup) Fields() []parquet.Field {
	sorted := g.Group.Fields()
	byName := make(map[string]parquet.Field, len(sorted))
	for _, f := range sorted {
		byName[f.Name()] = f
	}
	fields := make([]parquet.Field, len(g.names))
	for i, c := range g.names {
		fields[i] = byName[c]
	}
	return fields
}
