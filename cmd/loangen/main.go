// Command loangen writes a synthetic raw loan-application CSV for local runs
// and benchmarks.
//
//	loangen -rows 1000000 -out data/raw/combined.csv.gz -seed 7
//
// The output has the raw column layout of the combined accepted/rejected
// dataset: mixed-case headers, percent-suffixed rates, "36 months" terms,
// "10+ years" tenures and free-text labels. A ".gz" or ".zst" suffix on -out
// compresses the stream; "-" writes to stdout.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Header is the raw column layout written by the generator.
var Header = []string{
	"id", "Loan_Amnt", "Term", "Int_Rate", "Emp_Length", "Home_Ownership",
	"Annual_Inc", "Purpose", "Addr_State", "DTI", "Delinq_2yrs",
	"FICO_Range_Low", "FICO_Range_High", "Inq_Last_6mths", "Application_Type",
	"Loan_Status",
}

var (
	terms       = []string{"36 months", "60 months", " 36 months"}
	empLengths  = []string{"< 1 year", "1 year", "2 years", "3 years", "4 years", "5 years", "6 years", "7 years", "8 years", "9 years", "10+ years", "n/a"}
	ownership   = []string{"RENT", "MORTGAGE", "OWN", "OTHER"}
	purposes    = []string{"debt_consolidation", "credit_card", "home_improvement", "car", "medical", "small_business", "wedding", "moving", "vacation", "other"}
	states      = []string{"CA", "NY", "TX", "FL", "IL", "NJ", "PA", "OH", "GA", "WA", "NC", "MI"}
	appTypes    = []string{"Individual", "Joint App"}
	acceptLabel = []string{"Accepted", "accepted", "ACCEPTED"}
	rejectLabel = []string{"Rejected", "rejected", " REJECTED "}
	junkLabels  = []string{"", "Current", "Charged Off", "nan", "Does not meet the credit policy"}
)

// Generator produces rows deterministically from its seed.
type Generator struct {
	// MissingRate is the probability that an optional cell is left empty.
	MissingRate float64
	// JunkRate is the probability that a row carries a label that maps to
	// neither accepted nor rejected.
	JunkRate float64
	// RejectRate is the share of labeled rows that are rejected.
	RejectRate float64

	rnd *rand.Rand
	id  int64
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		MissingRate: 0.05,
		JunkRate:    0.02,
		RejectRate:  0.4,
		rnd:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (g *Generator) pickOf(vals []string) string { return vals[g.rnd.IntN(len(vals))] }

// maybe blanks v with probability MissingRate.
func (g *Generator) maybe(v string) string {
	if g.rnd.Float64() < g.MissingRate {
		return ""
	}
	return v
}

// Row returns the next record. The slice is freshly allocated.
func (g *Generator) Row() []string {
	g.id++
	ficoLow := 600 + 5*g.rnd.IntN(40)

	label := g.pickOf(acceptLabel)
	switch r := g.rnd.Float64(); {
	case r < g.JunkRate:
		label = g.pickOf(junkLabels)
	case r < g.JunkRate+(1-g.JunkRate)*g.RejectRate:
		label = g.pickOf(rejectLabel)
	}

	return []string{
		strconv.FormatInt(g.id, 10),
		g.maybe(strconv.Itoa(1000 + 25*g.rnd.IntN(1560))),
		g.maybe(g.pickOf(terms)),
		g.maybe(strconv.FormatFloat(5+float64(g.rnd.IntN(2500))/100, 'f', 2, 64) + "%"),
		g.maybe(g.pickOf(empLengths)),
		g.maybe(g.pickOf(ownership)),
		g.maybe(strconv.Itoa(20_000 + 500*g.rnd.IntN(400))),
		g.maybe(g.pickOf(purposes)),
		g.maybe(g.pickOf(states)),
		g.maybe(strconv.FormatFloat(float64(g.rnd.IntN(4000))/100, 'f', 2, 64) + "%"),
		g.maybe(strconv.Itoa(g.rnd.IntN(4))),
		g.maybe(strconv.Itoa(ficoLow)),
		g.maybe(strconv.Itoa(ficoLow + 4)),
		g.maybe(strconv.Itoa(g.rnd.IntN(7))),
		g.maybe(g.pickOf(appTypes)),
		label,
	}
}

// Write emits the header and n rows to w as CSV. progress, when non-nil, is
// called every 100k rows with the count written so far.
func (g *Generator) Write(w io.Writer, n int, progress func(done int)) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 1; i <= n; i++ {
		if err := cw.Write(g.Row()); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
		if progress != nil && i%100_000 == 0 {
			progress(i)
		}
	}
	cw.Flush()
	return cw.Error()
}

// openOutput creates path and wraps it in the compressor its suffix asks for.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	out := &layered{Writer: bw, flush: bw.Flush, closers: []io.Closer{f}}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zw := gzip.NewWriter(bw)
		out.Writer = zw
		out.closers = append([]io.Closer{zw}, out.closers...)
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(bw)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		out.Writer = zw
		out.closers = append([]io.Closer{zw}, out.closers...)
	}
	return out, nil
}

// layered closes an optional compressor, flushes the buffer, then closes the
// file.
type layered struct {
	io.Writer
	flush   func() error
	closers []io.Closer // compressor (optional), then file
}

func (l *layered) Close() error {
	var first error
	last := len(l.closers) - 1
	for i, c := range l.closers {
		if i == last {
			if err := l.flush(); err != nil && first == nil {
				first = err
			}
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func main() {
	var (
		rows        int
		seed        uint64
		out         string
		missingRate float64
		junkRate    float64
		rejectRate  float64
	)
	flag.IntVar(&rows, "rows", 100_000, "number of data rows")
	flag.Uint64Var(&seed, "seed", 1, "random seed; equal seeds give equal files")
	flag.StringVar(&out, "out", "-", "output path (.gz/.zst compress; - for stdout)")
	flag.Float64Var(&missingRate, "missing-rate", 0.05, "probability that an optional cell is empty")
	flag.Float64Var(&junkRate, "junk-rate", 0.02, "probability of a label that is neither accepted nor rejected")
	flag.Float64Var(&rejectRate, "reject-rate", 0.4, "share of labeled rows that are rejected")
	verbose := flag.Bool("v", false, "log progress")
	flag.Parse()

	if rows < 0 {
		fatalf("-rows must not be negative")
	}
	for name, v := range map[string]float64{"missing-rate": missingRate, "junk-rate": junkRate, "reject-rate": rejectRate} {
		if v < 0 || v > 1 {
			fatalf("-%s=%v; must be within [0,1]", name, v)
		}
	}

	w, err := openOutput(out)
	if err != nil {
		fatalf("%v", err)
	}

	g := NewGenerator(seed)
	g.MissingRate, g.JunkRate, g.RejectRate = missingRate, junkRate, rejectRate

	start := time.Now()
	var progress func(int)
	if *verbose {
		progress = func(done int) {
			log.Printf("loangen: rows=%s elapsed=%s", humanize.Comma(int64(done)), time.Since(start).Truncate(time.Millisecond))
		}
	}
	if err := g.Write(w, rows, progress); err != nil {
		w.Close()
		fatalf("generate: %v", err)
	}
	if err := w.Close(); err != nil {
		fatalf("close output: %v", err)
	}

	if out != "-" {
		size := "?"
		if st, err := os.Stat(out); err == nil {
			size = humanize.Bytes(uint64(st.Size()))
		}
		log.Printf("loangen: wrote %s rows to %s (%s) in %s",
			humanize.Comma(int64(rows)), out, size, time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
