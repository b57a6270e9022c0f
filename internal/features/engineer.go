// Package features turns raw loan-application rows into a numeric feature
// table: header normalization, numeric coercion, label mapping, per-chunk
// imputation and one-hot encoding.
//
// A Transformer is built once from configuration and applied to every chunk.
// All statistics (medians, modes, category levels) are computed from the chunk
// being transformed; nothing carries over between calls.
package features

import (
	"fmt"
	"math"
	"slices"

	"loanprep/internal/config"
	"loanprep/internal/datasource/file"
	"loanprep/internal/frame"
)

// Derived and special column names.
const (
	TermColumn      = "term"
	EmpLengthColumn = "emp_length"
	FicoLowColumn   = "fico_range_low"
	FicoHighColumn  = "fico_range_high"

	TermMonths     = "term_months"
	EmpLengthYears = "emp_length_years"
	FicoScoreName  = "fico_score"
)

// Spec is the resolved column-role configuration. Names are normalized.
type Spec struct {
	Numeric          []string
	Categorical      []string
	Percent          []string
	Exclude          []string
	InferCategorical bool
	NumericFallback  float64

	TargetColumn string
	TargetOutput string
	Accept       []string
	Reject       []string
}

// SpecFromConfig resolves config.Features, loading ExcludeFieldsFile if set.
func SpecFromConfig(f config.Features) (Spec, error) {
	exclude := append([]string(nil), f.ExcludeFields...)
	if f.ExcludeFieldsFile != "" {
		extra, err := file.ReadList(f.ExcludeFieldsFile)
		if err != nil {
			return Spec{}, fmt.Errorf("read exclude_fields_file: %w", err)
		}
		exclude = append(exclude, extra...)
	}
	return Spec{
		Numeric:          normalizeNames(f.NumericFields),
		Categorical:      normalizeNames(f.CategoricalFields),
		Percent:          normalizeNames(f.PercentFields),
		Exclude:          normalizeNames(exclude),
		InferCategorical: f.InferCategorical,
		NumericFallback:  f.NumericFallback,
		TargetColumn:     normalizeName(f.Target.Column),
		TargetOutput:     normalizeName(f.Target.Output),
		Accept:           f.Target.Accept,
		Reject:           f.Target.Reject,
	}, nil
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalizeName(s); n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Report summarizes what Engineer did to one chunk.
type Report struct {
	RawRows      int
	Kept         int
	DroppedLabel int
	HasTarget    bool

	DuplicateHeaders []string

	// NumericFills and CategoricalFills hold the imputation value per column.
	NumericFills     map[string]float64
	CategoricalFills map[string]string
	// FallbackColumns had no numeric values; UnknownColumns had no
	// categorical values.
	FallbackColumns []string
	UnknownColumns  []string

	Indicators int
	// NameCollisions lists indicator names skipped because an earlier column
	// already used them.
	NameCollisions []string
}

// Transformer applies a Spec to raw chunks.
type Transformer struct {
	spec    Spec
	labels  LabelMapper
	percent map[string]bool
	exclude map[string]bool
}

// New returns a Transformer for spec.
func New(spec Spec) *Transformer {
	t := &Transformer{
		spec:    spec,
		labels:  NewLabelMapper(spec.Accept, spec.Reject),
		percent: make(map[string]bool, len(spec.Percent)),
		exclude: make(map[string]bool, len(spec.Exclude)),
	}
	for _, p := range spec.Percent {
		t.percent[p] = true
	}
	for _, e := range spec.Exclude {
		t.exclude[e] = true
	}
	return t
}

// numericCol is one compiled numeric output column.
type numericCol struct {
	name  string
	src   int
	parse func(string) (float64, bool)
}

// plan is the per-chunk positional layout derived from the header.
type plan struct {
	target      int // -1 when absent
	numeric     []numericCol
	ficoLow     int
	ficoHigh    int
	categorical []numericCol // parse unused; src and name only
}

func (t *Transformer) compile(cols []string, idx map[string]int) plan {
	p := plan{target: -1, ficoLow: -1, ficoHigh: -1}
	if i, ok := idx[t.spec.TargetColumn]; ok {
		p.target = i
	}
	if i, ok := idx[FicoLowColumn]; ok {
		p.ficoLow = i
	}
	if i, ok := idx[FicoHighColumn]; ok {
		p.ficoHigh = i
	}

	reserved := map[string]bool{
		t.spec.TargetColumn: true,
		FicoLowColumn:       true,
		FicoHighColumn:      true,
		TermMonths:          true,
		EmpLengthYears:      true,
		FicoScoreName:       true,
		t.spec.TargetOutput: true,
	}
	numeric := map[string]bool{}
	addNumeric := func(name string) {
		if numeric[name] || reserved[name] || t.exclude[name] {
			return
		}
		i, ok := idx[name]
		if !ok {
			return
		}
		numeric[name] = true
		parse := ParseNumber
		if t.percent[name] {
			parse = ParsePercent
		}
		p.numeric = append(p.numeric, numericCol{name: name, src: i, parse: parse})
	}
	for _, n := range t.spec.Numeric {
		addNumeric(n)
	}
	for _, n := range t.spec.Percent {
		addNumeric(n)
	}
	if i, ok := idx[TermColumn]; ok {
		p.numeric = append(p.numeric, numericCol{name: TermMonths, src: i, parse: ParseTerm})
	}
	if i, ok := idx[EmpLengthColumn]; ok {
		p.numeric = append(p.numeric, numericCol{name: EmpLengthYears, src: i, parse: ParseEmpLength})
	}

	isCat := map[string]bool{}
	addCat := func(name string) {
		if isCat[name] || numeric[name] || reserved[name] || t.exclude[name] {
			return
		}
		i, ok := idx[name]
		if !ok {
			return
		}
		isCat[name] = true
		p.categorical = append(p.categorical, numericCol{name: name, src: i})
	}
	for _, n := range t.spec.Categorical {
		addCat(n)
	}
	if t.spec.InferCategorical {
		for i, c := range cols {
			if c != "" && idx[c] == i {
				addCat(c)
			}
		}
	}
	return p
}

// Engineer transforms one raw chunk. It never fails: malformed cells become
// missing values and rows with unmapped labels are dropped. The returned
// frame is never nil; it may have zero rows.
func (t *Transformer) Engineer(raw *frame.Raw) (*frame.Frame, Report) {
	var rows [][]string
	var header []string
	if raw != nil {
		rows, header = raw.Rows, raw.Columns
	}
	cols := NormalizeHeaders(header)
	idx, dups := indexFirst(cols)
	p := t.compile(cols, idx)

	rep := Report{
		RawRows:          len(rows),
		HasTarget:        p.target >= 0,
		DuplicateHeaders: dups,
		NumericFills:     map[string]float64{},
		CategoricalFills: map[string]string{},
	}

	// Label mapping first: it decides which rows survive.
	keep := make([]int, 0, len(rows))
	var target []float64
	if p.target >= 0 {
		target = make([]float64, 0, len(rows))
		for i, row := range rows {
			if y, ok := t.labels.Map(cell(row, p.target)); ok {
				keep = append(keep, i)
				target = append(target, y)
			}
		}
	} else {
		for i := range rows {
			keep = append(keep, i)
		}
	}
	rep.Kept = len(keep)
	rep.DroppedLabel = len(rows) - len(keep)

	// Numeric columns, then fico_score.
	names := make([]string, 0, len(p.numeric)+1)
	values := make([][]float64, 0, len(p.numeric)+1)
	for _, nc := range p.numeric {
		vals := make([]float64, len(keep))
		for k, r := range keep {
			if v, ok := nc.parse(cell(rows[r], nc.src)); ok {
				vals[k] = v
			} else {
				vals[k] = math.NaN()
			}
		}
		names = append(names, nc.name)
		values = append(values, vals)
	}
	fico := make([]float64, len(keep))
	for k, r := range keep {
		if v, ok := FicoScore(cell(rows[r], p.ficoLow), cell(rows[r], p.ficoHigh)); ok {
			fico[k] = v
		} else {
			fico[k] = math.NaN()
		}
	}
	names = append(names, FicoScoreName)
	values = append(values, fico)

	for i, vals := range values {
		fill, fallback := imputeNumeric(vals, t.spec.NumericFallback)
		rep.NumericFills[names[i]] = fill
		if fallback {
			rep.FallbackColumns = append(rep.FallbackColumns, names[i])
		}
	}

	// Categorical columns: impute, then lay out indicators.
	used := make(map[string]bool, len(names)+1)
	for _, n := range names {
		used[n] = true
	}
	if p.target >= 0 {
		used[t.spec.TargetOutput] = true
	}
	out := append([]string(nil), names...)
	encs := make([]encoding, 0, len(p.categorical))
	catVals := make([][]string, 0, len(p.categorical))
	for _, cc := range p.categorical {
		vals := make([]string, len(keep))
		for k, r := range keep {
			vals[k] = normalizeCategory(cell(rows[r], cc.src))
		}
		fill, allMissing := imputeCategorical(vals)
		rep.CategoricalFills[cc.name] = fill
		if allMissing && len(keep) > 0 {
			rep.UnknownColumns = append(rep.UnknownColumns, cc.name)
		}
		enc := encoding{column: cc.name, offset: map[string]int{}}
		for _, lv := range levels(vals) {
			name := IndicatorName(cc.name, lv)
			if used[name] {
				rep.NameCollisions = append(rep.NameCollisions, name)
				continue
			}
			used[name] = true
			enc.values = append(enc.values, lv)
			enc.offset[lv] = len(out)
			out = append(out, name)
			rep.Indicators++
		}
		encs = append(encs, enc)
		catVals = append(catVals, vals)
	}
	targetCol := -1
	if p.target >= 0 {
		targetCol = len(out)
		out = append(out, t.spec.TargetOutput)
	}

	f := frame.New(out, len(keep))
	for k := range keep {
		row := f.Rows[k]
		for i, vals := range values {
			row[i] = vals[k]
		}
		for c, enc := range encs {
			if off, ok := enc.offset[catVals[c][k]]; ok {
				row[off] = 1
			}
		}
		if targetCol >= 0 {
			row[targetCol] = target[k]
		}
	}
	return f, rep
}

// cell returns row[i], or "" when i is negative or past the end of a short row.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
