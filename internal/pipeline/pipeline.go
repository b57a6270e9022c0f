// Package pipeline runs one feature-engineering pass over a raw loan file.
//
// The loop is strictly sequential:
//
//	open source → read sample → engineer → discover schema → begin sink
//	           → (read chunk → engineer → align → append)* → close → manifest
//
// Only one raw chunk and its engineered frame are held in memory at a time.
// Row-level problems (bad CSV records, unmapped labels, unparseable numbers)
// never stop the run; they are counted and summarized. Source, schema and
// sink failures stop it with a *StageError naming the stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"loanprep/internal/config"
	"loanprep/internal/datasource"
	"loanprep/internal/datasource/file"
	"loanprep/internal/features"
	"loanprep/internal/frame"
	"loanprep/internal/metrics"
	csvparser "loanprep/internal/parser/csv"
	"loanprep/internal/schema"
	"loanprep/internal/sink"
)

// thisMany bounds the example messages kept per error aggregate.
const thisMany = 3

// Summary reports what a run did.
type Summary struct {
	Job      string
	Input    string
	Output   string
	SinkKind string

	Schema schema.Schema

	// Chunks counts engineered chunks, the sample included.
	Chunks       int
	RowsRead     int64
	RowsKept     int64
	DroppedLabel int64
	ParseErrors  int64
	RowsWritten  int64

	// Discarded lists (once each) the columns that later chunks produced but
	// the schema did not contain.
	Discarded []string

	ManifestPath string
	Started      time.Time
	Finished     time.Time
}

// Option customizes Run.
type Option func(*options)

type options struct {
	source  datasource.Source
	sink    sink.Writer
	verbose bool
}

// WithSource replaces the configured file source.
func WithSource(s datasource.Source) Option { return func(o *options) { o.source = s } }

// WithSink replaces the writer built from cfg.Sink.
func WithSink(w sink.Writer) Option { return func(o *options) { o.sink = w } }

// WithVerbose enables per-chunk and per-batch logs.
func WithVerbose(v bool) Option { return func(o *options) { o.verbose = v } }

// run carries the state of one Run call.
type run struct {
	cfg  config.Pipeline
	opt  options
	sum  *Summary
	tr   *features.Transformer
	rd   *csvparser.ChunkReader
	w    sink.Writer
	sch  schema.Schema
	seen map[string]bool // discarded column names already reported

	parseAgg *errAgg
	warnAgg  *errAgg
}

// Run executes the pipeline described by cfg. Defaults are applied to cfg.
// On error the returned Summary holds the counts reached so far.
func Run(ctx context.Context, cfg config.Pipeline, opts ...Option) (Summary, error) {
	cfg = cfg.WithDefaults()
	r := &run{
		cfg: cfg,
		sum: &Summary{
			Job:      cfg.Job,
			Input:    cfg.Source.File.Path,
			Output:   cfg.Sink.Path,
			SinkKind: cfg.Sink.Kind,
			Started:  time.Now(),
		},
		seen:     map[string]bool{},
		parseAgg: newErrAgg(thisMany),
		warnAgg:  newErrAgg(thisMany),
	}
	for _, fn := range opts {
		fn(&r.opt)
	}

	closeSrc, err := r.step(StageOpen, func() (func(), error) { return r.open(ctx) })
	if err != nil {
		return *r.sum, err
	}
	defer closeSrc()

	if _, err := r.step(StageDiscovery, func() (func(), error) { return nil, r.discover(ctx) }); err != nil {
		r.abort()
		return *r.sum, err
	}

	for chunk := 1; ; chunk++ {
		var eof bool
		_, err := r.step(StageChunk, func() (func(), error) {
			var err error
			eof, err = r.chunk(ctx, chunk)
			return nil, err
		})
		if err != nil {
			r.abort()
			return *r.sum, err
		}
		if eof {
			break
		}
	}

	if _, err := r.step(StageWrite, func() (func(), error) { return nil, r.closeSink() }); err != nil {
		return *r.sum, err
	}
	r.sum.ParseErrors = int64(r.parseAgg.count)
	metrics.RecordRows(cfg.Job, "parse_errors", r.sum.ParseErrors)
	r.sum.Finished = time.Now()

	if _, err := r.step(StageManifest, func() (func(), error) { return nil, r.writeManifest() }); err != nil {
		return *r.sum, err
	}

	r.logSummary()
	return *r.sum, nil
}

// step times fn and records it as a pipeline step.
func (r *run) step(stage string, fn func() (func(), error)) (func(), error) {
	start := time.Now()
	out, err := fn()
	metrics.RecordStep(r.cfg.Job, stage, err, time.Since(start))
	return out, err
}

// open resolves the feature spec, opens the source and reads the header.
func (r *run) open(ctx context.Context) (func(), error) {
	spec, err := features.SpecFromConfig(r.cfg.Features)
	if err != nil {
		return nil, stageErr(StageOpen, -1, err)
	}
	r.tr = features.New(spec)

	rc, err := r.openSource(ctx)
	if err != nil {
		return nil, stageErr(StageOpen, -1, fmt.Errorf("open source: %w", err))
	}

	popts := maps.Clone(r.cfg.Parser.Options)
	if popts == nil {
		popts = config.Options{}
	}
	if r.opt.verbose {
		popts["verbose"] = true
	}
	rd, err := csvparser.NewChunkReader(rc, popts, func(line int, err error) {
		r.parseAgg.add(fmt.Sprintf("line=%d: %v", line, err))
	})
	if err != nil {
		rc.Close()
		return nil, stageErr(StageOpen, -1, err)
	}
	r.rd = rd
	return func() { rc.Close() }, nil
}

func (r *run) openSource(ctx context.Context) (io.ReadCloser, error) {
	if r.opt.source != nil {
		return r.opt.source.Open(ctx)
	}
	if r.cfg.Source.Kind != "file" {
		return nil, fmt.Errorf("unsupported source.kind=%s", r.cfg.Source.Kind)
	}
	local := file.NewLocal(r.cfg.Source.File.Path)
	rc, comp, err := local.OpenDetect(ctx)
	if err != nil {
		return nil, err
	}
	if size, err := local.Size(); err == nil {
		log.Printf("source: path=%s size=%s compression=%s", local.Path(), humanize.Bytes(uint64(size)), comp)
	}
	return rc, nil
}

// discover engineers the sample, fixes the schema and starts the sink.
func (r *run) discover(ctx context.Context) error {
	raw, err := r.rd.ReadChunk(ctx, r.cfg.Chunking.SampleRows)
	if errors.Is(err, io.EOF) {
		raw = &frame.Raw{Columns: r.rd.Columns()}
	} else if err != nil {
		return stageErr(StageDiscovery, 0, err)
	}

	f, rep := r.tr.Engineer(raw)
	r.observe(rep)
	if rep.HasTarget && rep.Kept == 0 {
		log.Printf("discovery: WARNING sample has no rows with an accepted/rejected label (raw=%d); schema has no indicator columns", rep.RawRows)
	}
	if !rep.HasTarget {
		log.Printf("discovery: WARNING target column %q not found; output has no target", r.cfg.Features.Target.Column)
	}

	sch, err := schema.Discover(f.Columns)
	if err != nil {
		return stageErr(StageDiscovery, 0, err)
	}
	r.sch = sch
	r.sum.Schema = sch
	log.Printf("discovery: sample_rows=%s kept=%s columns=%d indicators=%d fingerprint=%s",
		humanize.Comma(int64(rep.RawRows)), humanize.Comma(int64(rep.Kept)), sch.Len(), rep.Indicators, sch.Fingerprint())

	w := r.opt.sink
	if w == nil {
		scfg := r.cfg.Sink
		scfg.Options = maps.Clone(scfg.Options)
		if scfg.Options == nil {
			scfg.Options = config.Options{}
		}
		if r.opt.verbose {
			scfg.Options["verbose"] = true
		}
		if w, err = sink.New(scfg); err != nil {
			return stageErr(StageWrite, -1, err)
		}
	}
	r.w = w
	if err := w.Begin(ctx, sch); err != nil {
		return stageErr(StageWrite, 0, err)
	}

	n, err := w.Append(ctx, f)
	r.written(n)
	if err != nil {
		return stageErr(StageWrite, 0, err)
	}
	r.sum.Chunks++
	metrics.RecordChunks(r.cfg.Job, 1)
	return nil
}

// chunk processes one post-sample chunk. It reports eof once the input is
// exhausted.
func (r *run) chunk(ctx context.Context, n int) (eof bool, err error) {
	raw, err := r.rd.ReadChunk(ctx, r.cfg.Chunking.ChunkSize)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, stageErr(StageChunk, n, err)
	}

	f, rep := r.tr.Engineer(raw)
	r.observe(rep)
	r.sum.Chunks++
	metrics.RecordChunks(r.cfg.Job, 1)
	if f.Empty() {
		if r.opt.verbose {
			log.Printf("chunk: n=%d raw=%d kept=0; skipped", n, rep.RawRows)
		}
		return false, nil
	}

	extra := r.sch.Extra(f.Columns)
	metrics.RecordDiscardedColumns(r.cfg.Job, int64(len(extra)))
	for _, c := range extra {
		if !r.seen[c] {
			r.seen[c] = true
			r.sum.Discarded = append(r.sum.Discarded, c)
		}
	}

	written, err := r.w.Append(ctx, r.sch.Align(f))
	r.written(written)
	if err != nil {
		return false, stageErr(StageWrite, n, err)
	}

	if r.opt.verbose {
		log.Printf("chunk: n=%d raw=%s kept=%s dropped_label=%s discarded_columns=%d line=%d total_written=%s",
			n, humanize.Comma(int64(rep.RawRows)), humanize.Comma(int64(rep.Kept)),
			humanize.Comma(int64(rep.DroppedLabel)), len(extra), r.rd.Line(), humanize.Comma(r.sum.RowsWritten))
	}
	return false, nil
}

// observe folds one chunk report into the totals.
func (r *run) observe(rep features.Report) {
	r.sum.RowsRead += int64(rep.RawRows)
	r.sum.RowsKept += int64(rep.Kept)
	r.sum.DroppedLabel += int64(rep.DroppedLabel)
	metrics.RecordRows(r.cfg.Job, "read", int64(rep.RawRows))
	metrics.RecordRows(r.cfg.Job, "kept", int64(rep.Kept))
	metrics.RecordRows(r.cfg.Job, "dropped_label", int64(rep.DroppedLabel))

	for _, d := range rep.DuplicateHeaders {
		r.warnAgg.addOnce(fmt.Sprintf("duplicate header %q: first occurrence used", d))
	}
	for _, c := range rep.NameCollisions {
		r.warnAgg.addOnce(fmt.Sprintf("indicator %q collides with an existing column; skipped", c))
	}
	if r.opt.verbose {
		for _, c := range rep.FallbackColumns {
			log.Printf("impute: column=%s has no values; fallback=%v", c, r.cfg.Features.NumericFallback)
		}
		for _, c := range rep.UnknownColumns {
			log.Printf("impute: column=%s has no values; filled with %q", c, features.Unknown)
		}
	}
}

func (r *run) written(n int64) {
	r.sum.RowsWritten += n
	metrics.RecordRows(r.cfg.Job, "written", n)
}

// abort closes the sink after a failure; the failure itself is what the
// caller reports.
func (r *run) abort() {
	if r.w == nil {
		return
	}
	if err := r.w.Close(); err != nil {
		log.Printf("sink: close after failure: %v", err)
	}
}

func (r *run) closeSink() error {
	if err := r.w.Close(); err != nil {
		return stageErr(StageWrite, -1, err)
	}
	return nil
}

func (r *run) writeManifest() error {
	if !r.cfg.Sink.ManifestEnabled() || r.cfg.Sink.Path == "" {
		return nil
	}
	path := ManifestPath(r.cfg.Sink.Path)
	m := Manifest{
		Job:         r.sum.Job,
		Input:       r.sum.Input,
		Output:      r.sum.Output,
		SinkKind:    r.sum.SinkKind,
		Columns:     r.sch.Columns(),
		Fingerprint: r.sch.Fingerprint(),
		SampleRows:  r.cfg.Chunking.SampleRows,
		ChunkSize:   r.cfg.Chunking.ChunkSize,
		Chunks:      r.sum.Chunks,
		RowsRead:    r.sum.RowsRead,
		RowsWritten: r.sum.RowsWritten,
		Dropped:     r.sum.DroppedLabel,
		ParseErrors: r.sum.ParseErrors,
		Discarded:   slices.Clone(r.sum.Discarded),
		StartedAt:   r.sum.Started.UTC(),
		FinishedAt:  r.sum.Finished.UTC(),
	}
	if config.IsDBSink(r.cfg.Sink.Kind) {
		m.Table = r.cfg.Sink.DB.Table
	}
	if err := WriteManifest(path, m); err != nil {
		return stageErr(StageManifest, -1, err)
	}
	r.sum.ManifestPath = path
	return nil
}

func (r *run) logSummary() {
	r.parseAgg.logSummary("parse errors")
	r.warnAgg.logSummary("warnings")
	s := r.sum
	log.Printf("summary: chunks=%d read=%s kept=%s dropped_label=%s parse_errors=%s written=%s columns=%d discarded_columns=%d elapsed=%s",
		s.Chunks, humanize.Comma(s.RowsRead), humanize.Comma(s.RowsKept), humanize.Comma(s.DroppedLabel),
		humanize.Comma(s.ParseErrors), humanize.Comma(s.RowsWritten), s.Schema.Len(), len(s.Discarded),
		s.Finished.Sub(s.Started).Truncate(time.Millisecond))
}
