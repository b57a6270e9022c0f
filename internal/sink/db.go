package sink

import (
	"context"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"

	"loanprep/internal/config"
	"loanprep/internal/frame"
	"loanprep/internal/schema"
	"loanprep/internal/storage"
)

func init() {
	for _, kind := range config.DBSinkKinds {
		Register(kind, func(cfg config.Sink) (Writer, error) { return NewDB(cfg), nil })
	}
}

// DBWriter loads chunks into a database table through a storage.Repository.
// The backend must be registered with the storage package (import
// loanprep/internal/storage/all or the single backend).
//
// Options:
//   - batch_size (int; rows per bulk insert; default 10000)
//   - verbose (bool; per-batch loader logs)
type DBWriter struct {
	kind         string
	dsn          string
	table        string
	keepExisting bool
	batchSize    int
	verbose      bool

	repo    storage.Repository
	columns []string
	rows    [][]any
}

// NewDB returns a writer for cfg. The connection is opened by Begin.
func NewDB(cfg config.Sink) *DBWriter {
	return &DBWriter{
		kind:         cfg.Kind,
		dsn:          cfg.DB.DSN,
		table:        cfg.DB.Table,
		keepExisting: cfg.DB.KeepExisting,
		batchSize:    cfg.Options.Int("batch_size", 10_000),
		verbose:      cfg.Options.Bool("verbose", false),
	}
}

// Begin connects and creates the table. Unless keep_existing is set the
// table is dropped first, so every run starts from an empty table.
func (w *DBWriter) Begin(ctx context.Context, s schema.Schema) error {
	if w.repo != nil {
		return ErrStarted
	}
	repo, err := storage.New(ctx, storage.Config{Kind: w.kind, DSN: w.dsn, Table: w.table})
	if err != nil {
		return fmt.Errorf("%s sink: connect: %w", w.kind, err)
	}
	w.columns = s.Columns()
	if err := storage.EnsureTable(ctx, w.kind, repo, w.table, w.columns, !w.keepExisting); err != nil {
		repo.Close()
		return fmt.Errorf("%s sink: %w", w.kind, err)
	}
	w.repo = repo
	log.Printf("sink: kind=%s table=%s columns=%d recreate=%t", w.kind, w.table, len(w.columns), !w.keepExisting)
	return nil
}

// Append bulk-inserts the rows of f.
func (w *DBWriter) Append(ctx context.Context, f *frame.Frame) (int64, error) {
	if w.repo == nil {
		return 0, ErrNotStarted
	}
	if err := checkWidth(f, len(w.columns)); err != nil {
		return 0, err
	}
	if f.Empty() {
		return 0, nil
	}

	w.rows = w.rows[:0]
	for _, r := range f.Rows {
		vals := make([]any, len(r))
		for j, v := range r {
			vals[j] = v
		}
		w.rows = append(w.rows, vals)
	}
	n, err := storage.CopyBatches(ctx, w.columns, w.rows, w.batchSize, w.verbose, w.repo.CopyFrom)
	if err != nil {
		return n, fmt.Errorf("%s sink: insert: %w", w.kind, err)
	}
	if w.verbose {
		log.Printf("sink: kind=%s chunk_rows=%s", w.kind, humanize.Comma(n))
	}
	return n, nil
}

// Close releases the connection.
func (w *DBWriter) Close() error {
	if w.repo != nil {
		w.repo.Close()
		w.repo = nil
	}
	return nil
}
