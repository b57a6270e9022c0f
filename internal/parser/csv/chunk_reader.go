// Package csv reads loan-application CSV input in bounded chunks.
//
// A ChunkReader owns one encoding/csv.Reader for the whole run. The caller
// asks for the schema-discovery sample first and then for fixed-size chunks;
// both come from the same underlying stream, so the file is read once.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"loanprep/internal/config"
	"loanprep/internal/features"
	"loanprep/internal/frame"
)

// logEveryN controls the reader heartbeat in verbose mode.
const logEveryN = 50_000

// ErrNoHeader is returned when the input has no header line.
var ErrNoHeader = errors.New("csv: input has no header")

// ChunkReader yields raw chunks from a CSV stream.
//
// Options (all optional):
//   - comma (string; first rune used; default ',')
//   - lazy_quotes (bool; default false) → csv.Reader.LazyQuotes
//   - trim_space (bool; default true) trims every cell
//   - verbose (bool; default false) logs a heartbeat every 50k rows
//
// Rows shorter than the header are padded with missing cells. Rows longer
// than the header and malformed records are reported through onErr and
// skipped. Errors from the underlying reader end the stream.
type ChunkReader struct {
	cr      *csv.Reader
	columns []string
	width   int
	trim    bool
	verbose bool
	onErr   func(line int, err error)

	line    int // line of the last record read
	emitted int
	done    bool
}

// NewChunkReader reads the header from r and returns a reader positioned on
// the first data row. Header names are normalized (BOM stripped, trimmed,
// lowercased).
func NewChunkReader(r io.Reader, opt config.Options, onErr func(line int, err error)) (*ChunkReader, error) {
	cr := csv.NewReader(r)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1 // width is checked per row below

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	c := &ChunkReader{
		cr:      cr,
		columns: features.NormalizeHeaders(hdr),
		width:   len(hdr),
		trim:    opt.Bool("trim_space", true),
		verbose: opt.Bool("verbose", false),
		onErr:   onErr,
		line:    1,
	}
	return c, nil
}

// Columns returns the normalized header. The slice is shared by every chunk
// and must not be modified.
func (c *ChunkReader) Columns() []string { return c.columns }

// Line returns the input line of the last record read.
func (c *ChunkReader) Line() int { return c.line }

// Emitted returns the number of data rows handed out so far.
func (c *ChunkReader) Emitted() int { return c.emitted }

// ReadChunk returns up to n rows. It returns io.EOF (and a nil chunk) once
// the input is exhausted; a final partial chunk is returned with a nil error.
func (c *ChunkReader) ReadChunk(ctx context.Context, n int) (*frame.Raw, error) {
	if n <= 0 {
		return nil, fmt.Errorf("csv: chunk size %d must be positive", n)
	}
	if c.done {
		return nil, io.EOF
	}

	raw := &frame.Raw{Columns: c.columns, Rows: make([][]string, 0, min(n, 4096))}
	for len(raw.Rows) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := c.cr.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		if err != nil {
			// Only malformed records are recoverable; an I/O or
			// decompression error would repeat on every call.
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read input after line %d: %w", c.line, err)
			}
			c.line = pe.Line
			c.report(fmt.Errorf("csv read: %w", err))
			continue
		}
		c.line, _ = c.cr.FieldPos(0)

		if len(rec) > c.width {
			c.report(fmt.Errorf("row has %d fields, header has %d", len(rec), c.width))
			continue
		}

		row := make([]string, c.width)
		for i, v := range rec {
			if c.trim {
				v = strings.TrimSpace(v)
			}
			row[i] = v
		}
		if len(raw.Rows) == 0 {
			raw.FirstLine = c.line
		}
		raw.Rows = append(raw.Rows, row)

		c.emitted++
		if c.verbose && c.emitted%logEveryN == 0 {
			log.Printf("reader: line=%d emitted=%d", c.line, c.emitted)
		}
	}

	if len(raw.Rows) == 0 && c.done {
		return nil, io.EOF
	}
	return raw, nil
}

func (c *ChunkReader) report(err error) {
	if c.onErr != nil {
		c.onErr(c.line, err)
	}
}
