package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"loanprep/internal/config"
	"loanprep/internal/frame"
	"loanprep/internal/schema"
)

const rawHeader = "\uFEFFLoan_Amnt,Term,Int_Rate,Emp_Length,Purpose,FICO_Range_Low,FICO_Range_High,Loan_Status\n"

// rawBody exercises the sample/chunk split with sample_rows=3, chunk_size=2:
//
//	sample:  two kept rows, one unmapped label
//	chunk 1: an unseen purpose and an unseen emp_length value
//	chunk 2: one over-long record (parse error) and one unmapped label
const rawBody = "1000,36 months,10%,10+ years,car,700,704,Accepted\n" +
	"2000,60 months,,< 1 year,,680,684,Rejected\n" +
	"3000,36 months,12.5%,3 years,car,,,maybe\n" +
	"4000,36 months,8%,,wedding,720,724,accepted\n" +
	"5000,36 months,9%,2 years,car,,,REJECTED\n" +
	"6000,36 months,1%,1 year,car,700,700,Accepted,extra\n" +
	"7000,36 months,7%,1 year,car,700,710,Nope\n"

const wantCSV = "loan_amnt,int_rate,term_months,emp_length_years,fico_score,term_36 months,term_60 months,emp_length_10+ years,emp_length_< 1 year,purpose_car,target\n" +
	"1000,10,36,10,702,1,0,1,0,1,1\n" +
	"2000,10,60,0,682,0,1,0,1,1,0\n" +
	"4000,8,36,2,722,1,0,0,0,0,1\n" +
	"5000,9,36,2,722,1,0,0,0,1,0\n"

func testConfig(input, output string) config.Pipeline {
	p := config.Pipeline{
		Job:    "loanprep-test",
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: input}},
		Features: config.Features{
			NumericFields:     []string{"loan_amnt", "int_rate"},
			CategoricalFields: []string{"term", "emp_length", "purpose"},
			PercentFields:     []string{"int_rate"},
		},
		Chunking: config.Chunking{SampleRows: 3, ChunkSize: 2},
		Sink:     config.Sink{Kind: "csv", Path: output},
	}
	return p.WithDefaults()
}

func writeInput(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	in := writeInput(t, "combined.csv", rawHeader+rawBody)
	out := filepath.Join(t.TempDir(), "processed", "engineered.csv")

	sum, err := Run(context.Background(), testConfig(in, out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != wantCSV {
		t.Fatalf("output:\n%s\nwant:\n%s", got, wantCSV)
	}

	want := struct {
		chunks                                    int
		read, kept, dropped, parseErrors, written int64
	}{3, 6, 4, 2, 1, 4}
	if sum.Chunks != want.chunks || sum.RowsRead != want.read || sum.RowsKept != want.kept ||
		sum.DroppedLabel != want.dropped || sum.ParseErrors != want.parseErrors || sum.RowsWritten != want.written {
		t.Fatalf("summary=%+v want %+v", sum, want)
	}
	if wantDisc := []string{"emp_length_2 years", "purpose_wedding"}; !reflect.DeepEqual(sum.Discarded, wantDisc) {
		t.Fatalf("discarded=%v want %v", sum.Discarded, wantDisc)
	}

	m, err := ReadManifest(ManifestPath(out))
	if err != nil {
		t.Fatal(err)
	}
	if sum.ManifestPath != ManifestPath(out) {
		t.Fatalf("ManifestPath=%q", sum.ManifestPath)
	}
	if m.Fingerprint != sum.Schema.Fingerprint() || m.RowsWritten != 4 || m.Chunks != 3 ||
		m.ParseErrors != 1 || m.SampleRows != 3 || m.ChunkSize != 2 || m.SinkKind != "csv" {
		t.Fatalf("manifest=%+v", m)
	}
	if !reflect.DeepEqual(m.Columns, sum.Schema.Columns()) {
		t.Fatalf("manifest columns=%v", m.Columns)
	}
	if m.FinishedAt.Before(m.StartedAt) {
		t.Fatalf("finished %v before started %v", m.FinishedAt, m.StartedAt)
	}
}

func TestRun_GzipInputAndChunkSizes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, rawHeader+rawBody); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	in := writeInput(t, "combined.csv.gz", buf.String())

	// A sample that covers the whole file sees every category, so nothing
	// is discarded and the schema gains the extra indicators.
	out := filepath.Join(t.TempDir(), "engineered.csv")
	cfg := testConfig(in, out)
	cfg.Chunking = config.Chunking{SampleRows: 100, ChunkSize: 10}
	sum, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Chunks != 1 || sum.RowsWritten != 4 || len(sum.Discarded) != 0 {
		t.Fatalf("summary=%+v", sum)
	}
	for _, c := range []string{"purpose_wedding", "emp_length_2 years"} {
		if sum.Schema.Index(c) < 0 {
			t.Fatalf("schema misses %q: %v", c, sum.Schema.Columns())
		}
	}
}

func TestRun_HeaderOnly(t *testing.T) {
	t.Parallel()

	in := writeInput(t, "empty.csv", rawHeader)
	out := filepath.Join(t.TempDir(), "engineered.csv")
	sum, err := Run(context.Background(), testConfig(in, out))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := os.ReadFile(out)
	if want := "loan_amnt,int_rate,term_months,emp_length_years,fico_score,target\n"; string(got) != want {
		t.Fatalf("output=%q want %q", got, want)
	}
	if sum.RowsWritten != 0 || sum.Chunks != 1 {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "engineered.csv")
	_, err := Run(context.Background(), testConfig(filepath.Join(dir, "nope.csv"), out))

	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageOpen {
		t.Fatalf("err=%v; want open StageError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v; want os.ErrNotExist in chain", err)
	}
	if _, statErr := os.Stat(out); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("output must not be created on open failure (stat err=%v)", statErr)
	}
	if _, statErr := os.Stat(ManifestPath(out)); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("manifest must not be written on failure")
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	in := writeInput(t, "combined.csv", rawHeader+rawBody)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, testConfig(in, filepath.Join(t.TempDir(), "o.csv")))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

// fakeSink records calls and fails Append on a chosen chunk.
type fakeSink struct {
	failAt  int // 1-based Append call that fails; 0 never
	calls   int
	begun   bool
	closed  int
	columns [][]string
	rows    int
}

var errDiskFull = errors.New("no space left on device")

func (f *fakeSink) Begin(_ context.Context, s schema.Schema) error {
	f.begun = true
	return nil
}

func (f *fakeSink) Append(_ context.Context, fr *frame.Frame) (int64, error) {
	f.calls++
	if f.calls == f.failAt {
		return 0, errDiskFull
	}
	f.columns = append(f.columns, fr.Columns)
	f.rows += fr.Len()
	return int64(fr.Len()), nil
}

func (f *fakeSink) Close() error {
	f.closed++
	return nil
}

func TestRun_WriteFailureIsFatal(t *testing.T) {
	t.Parallel()

	in := writeInput(t, "combined.csv", rawHeader+rawBody)
	out := filepath.Join(t.TempDir(), "engineered.csv")
	fs := &fakeSink{failAt: 2}

	sum, err := Run(context.Background(), testConfig(in, out), WithSink(fs))
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v; want *StageError", err)
	}
	if se.Stage != StageWrite || se.Chunk != 1 || !errors.Is(err, errDiskFull) {
		t.Fatalf("stage=%s chunk=%d err=%v", se.Stage, se.Chunk, se.Err)
	}
	if !strings.Contains(err.Error(), "write (chunk 1)") {
		t.Fatalf("error text %q does not name the stage", err)
	}
	if fs.closed != 1 {
		t.Fatalf("sink closed %d times; want 1", fs.closed)
	}
	if sum.RowsWritten != 2 {
		t.Fatalf("RowsWritten=%d want 2 (sample only)", sum.RowsWritten)
	}
	if _, statErr := os.Stat(ManifestPath(out)); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("manifest must not be written on failure")
	}
}

func TestRun_AlignedFramesOnly(t *testing.T) {
	t.Parallel()

	in := writeInput(t, "combined.csv", rawHeader+rawBody)
	fs := &fakeSink{}
	cfg := testConfig(in, "")
	sum, err := Run(context.Background(), cfg, WithSink(fs))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !fs.begun || fs.closed != 1 {
		t.Fatalf("begun=%t closed=%d", fs.begun, fs.closed)
	}
	// The second chunk has no kept rows and is never appended.
	if fs.calls != 2 || fs.rows != 4 {
		t.Fatalf("append calls=%d rows=%d; want 2 and 4", fs.calls, fs.rows)
	}
	for i, cols := range fs.columns {
		if !sum.Schema.Matches(cols) {
			t.Fatalf("append %d columns=%v not aligned to %v", i, cols, sum.Schema.Columns())
		}
	}
	if sum.ManifestPath != "" {
		t.Fatalf("no output path, but manifest written to %q", sum.ManifestPath)
	}
}

type readerSource struct{ body string }

func (s readerSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestRun_WithSourceAndNoTarget(t *testing.T) {
	t.Parallel()

	body := "loan_amnt,purpose\n100,car\n,debt\n300,\n"
	out := filepath.Join(t.TempDir(), "engineered.csv")
	cfg := testConfig("unused.csv", out)
	cfg.Sink.Manifest = new(bool)

	sum, err := Run(context.Background(), cfg, WithSource(readerSource{body}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, _ := os.ReadFile(out)
	want := "loan_amnt,fico_score,purpose_car,purpose_debt\n" +
		"100,0,1,0\n" +
		"200,0,0,1\n" +
		"300,0,1,0\n"
	if string(got) != want {
		t.Fatalf("output:\n%s\nwant:\n%s", got, want)
	}
	if sum.ManifestPath != "" {
		t.Fatal("manifest disabled but written")
	}
}

func TestStageError(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	tests := []struct {
		err  *StageError
		want string
	}{
		{&StageError{Stage: StageOpen, Chunk: -1, Err: base}, "open: boom"},
		{&StageError{Stage: StageDiscovery, Chunk: 0, Err: base}, "discovery (chunk 0): boom"},
		{&StageError{Stage: StageWrite, Chunk: 7, Err: base}, "write (chunk 7): boom"},
	}
	for _, tc := range tests {
		if tc.err.Error() != tc.want {
			t.Fatalf("Error()=%q want %q", tc.err.Error(), tc.want)
		}
		if !errors.Is(tc.err, base) {
			t.Fatal("Unwrap lost the cause")
		}
	}
}

func TestErrAgg(t *testing.T) {
	t.Parallel()

	a := newErrAgg(2)
	for _, m := range []string{"a", "b", "a", "c"} {
		a.add(m)
	}
	if a.count != 4 || !reflect.DeepEqual(a.first, []string{"a", "b"}) || a.seen != nil {
		t.Fatalf("agg=%+v", a)
	}
	if !a.addOnce("d") || a.addOnce("d") || a.count != 5 {
		t.Fatalf("addOnce misbehaved: %+v", a)
	}
}

// TestErrAgg_BoundedMemory feeds many distinct messages, as a file full of
// malformed lines does, and checks retention stays at the limit.
func TestErrAgg_BoundedMemory(t *testing.T) {
	t.Parallel()

	const n = 200_000
	a := newErrAgg(thisMany)
	for i := 0; i < n; i++ {
		a.add(fmt.Sprintf("line=%d: wrong number of fields", i+2))
	}
	if a.count != n {
		t.Fatalf("count=%d want %d", a.count, n)
	}
	if len(a.first) != thisMany || a.first[0] != "line=2: wrong number of fields" {
		t.Fatalf("kept %d messages, first=%q", len(a.first), a.first[0])
	}
	if len(a.seen) != 0 {
		t.Fatalf("add retained %d messages outside the first %d", len(a.seen), thisMany)
	}
}

// BenchmarkRun measures a full pass over a synthetic file into a CSV sink.
func BenchmarkRun(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(rawHeader)
	purposes := []string{"car", "debt_consolidation", "wedding", "credit_card"}
	for i := 0; i < 20_000; i++ {
		label := "Accepted"
		if i%3 == 0 {
			label = "Rejected"
		}
		fmt.Fprintf(&sb, "%d,36 months,%d.5%%,%d years,%s,700,704,%s\n", 1000+i, i%30, i%10, purposes[i%len(purposes)], label)
	}
	dir := b.TempDir()
	in := filepath.Join(dir, "bench.csv")
	if err := os.WriteFile(in, []byte(sb.String()), 0o644); err != nil {
		b.Fatal(err)
	}
	cfg := testConfig(in, filepath.Join(dir, "out.csv"))
	cfg.Chunking = config.Chunking{SampleRows: 5_000, ChunkSize: 2_000}

	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	b.SetBytes(int64(sb.Len()))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Run(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
	}
}
