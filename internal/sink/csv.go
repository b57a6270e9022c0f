package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"loanprep/internal/config"
	"loanprep/internal/frame"
	"loanprep/internal/schema"
)

func init() {
	Register("csv", func(cfg config.Sink) (Writer, error) { return NewCSV(cfg.Path, cfg.Options), nil })
}

// CSVWriter writes a comma-separated file with one header line. Numbers use
// the shortest representation that round-trips ('f' format, no exponent).
//
// Options:
//   - comma (string; first rune used; default ',')
type CSVWriter struct {
	path  string
	comma rune

	f     *os.File
	bw    *bufio.Writer
	cw    *csv.Writer
	width int
	rec   []string
}

// NewCSV returns a writer for path. Nothing is created until Begin.
func NewCSV(path string, opt config.Options) *CSVWriter {
	return &CSVWriter{path: path, comma: opt.Rune("comma", ',')}
}

// Begin truncates the file and writes the header.
func (w *CSVWriter) Begin(_ context.Context, s schema.Schema) error {
	if w.f != nil {
		return ErrStarted
	}
	f, err := createFile(w.path)
	if err != nil {
		return err
	}
	w.f = f
	w.bw = bufio.NewWriterSize(f, 1<<20)
	w.cw = csv.NewWriter(w.bw)
	w.cw.Comma = w.comma
	w.width = s.Len()
	w.rec = make([]string, w.width)

	if err := w.cw.Write(s.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Append writes the rows of f.
func (w *CSVWriter) Append(ctx context.Context, f *frame.Frame) (int64, error) {
	if w.cw == nil {
		return 0, ErrNotStarted
	}
	if err := checkWidth(f, w.width); err != nil {
		return 0, err
	}
	var n int64
	for i, row := range f.Rows {
		if i%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		for j, v := range row {
			w.rec[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := w.cw.Write(w.rec); err != nil {
			return n, fmt.Errorf("write row: %w", err)
		}
		n++
	}
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return n, fmt.Errorf("flush rows: %w", err)
	}
	return n, nil
}

// Close flushes and closes the file.
func (w *CSVWriter) Close() error {
	if w.f == nil {
		return nil
	}
	defer func() { w.f, w.cw = nil, nil }()

	w.cw.Flush()
	err := w.cw.Error()
	if ferr := w.bw.Flush(); err == nil {
		err = ferr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	return nil
}
