// Package config defines the JSON-serializable configuration model for the
// loan feature pipeline. Pipelines are loaded from disk (or assembled from CLI
// flags) and passed through the program without additional glue code.
//
// Design goals:
//
//  1. Clarity: Field names in Go mirror the JSON structure used in pipeline
//     files under configs/*.json.
//  2. Defaults everywhere: an empty file plus CLI flags is a valid run; see
//     Default and Pipeline.WithDefaults.
//  3. Minimalism: decoding is performed by encoding/json, with a light Options
//     helper for kind-specific settings.
//
// Example (trimmed):
//
//	{
//	  "job":      "loanprep",
//	  "source":   { "kind": "file", "file": { "path": "data/combined.csv" } },
//	  "parser":   { "kind": "csv", "options": { "comma": "," } },
//	  "features": { "percent_fields": ["int_rate", "dti"] },
//	  "chunking": { "sample_rows": 500000, "chunk_size": 100000 },
//	  "sink":     { "kind": "csv", "path": "data/engineered.csv" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Pipeline describes one feature-engineering run. It is the top-level object
// decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for logs, metrics and the manifest.
	Job string `json:"job"`

	// Source describes where raw loan applications come from.
	Source Source `json:"source"`

	// Parser configures how raw bytes are turned into records (CSV only).
	Parser Parser `json:"parser"`

	// Features configures column roles and label literals.
	Features Features `json:"features"`

	// Chunking bounds memory: one sample for schema discovery, then fixed-size
	// row-groups.
	Chunking Chunking `json:"chunking"`

	// Sink describes where engineered rows are written.
	Sink Sink `json:"sink"`
}

// Source identifies the data source. Current kind: "file".
type Source struct {
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file. A ".gz" or ".zst"
	// suffix enables transparent decompression.
	Path string `json:"path"`
}

// Parser selects how to parse the raw source into rows.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   comma (string), lazy_quotes (bool), trim_space (bool)
	Options Options `json:"options"`
}

// Features lists the column roles used by the feature transform. Column names
// are compared after header normalization (trimmed, lowercased).
type Features struct {
	// NumericFields are coerced to float and median-imputed.
	NumericFields []string `json:"numeric_fields"`

	// CategoricalFields are mode-imputed and one-hot encoded.
	CategoricalFields []string `json:"categorical_fields"`

	// PercentFields carry an optional trailing '%' that is stripped before
	// parsing. They are numeric features even when absent from NumericFields.
	PercentFields []string `json:"percent_fields"`

	// ExcludeFields are never encoded (free text, identifiers).
	ExcludeFields []string `json:"exclude_fields"`

	// ExcludeFieldsFile optionally names a text file with one excluded column
	// per line ('#' comments allowed). Entries are merged into ExcludeFields.
	ExcludeFieldsFile string `json:"exclude_fields_file"`

	// InferCategorical treats every other non-numeric input column as
	// categorical instead of dropping it.
	InferCategorical bool `json:"infer_categorical"`

	// NumericFallback fills numeric columns that have no values at all in a
	// chunk (the median is undefined there).
	NumericFallback float64 `json:"numeric_fallback"`

	// Target configures the label column and its literals.
	Target Target `json:"target"`
}

// Target configures binary label mapping.
type Target struct {
	// Column is the raw label column (default "loan_status").
	Column string `json:"column"`

	// Output is the name of the emitted 0/1 column (default "target").
	Output string `json:"output"`

	// Accept lists literals mapped to 1; Reject lists literals mapped to 0.
	// Matching is case-insensitive after trimming. Other values drop the row.
	Accept []string `json:"accept"`
	Reject []string `json:"reject"`
}

// Chunking configures the two read phases.
type Chunking struct {
	// SampleRows is the number of leading data rows used for schema discovery.
	SampleRows int `json:"sample_rows"`

	// ChunkSize is the row count of every later read.
	ChunkSize int `json:"chunk_size"`
}

// Sink selects the destination for engineered rows.
type Sink struct {
	// Kind is one of csv, parquet, arrow, sqlite, postgres, mssql, mysql.
	Kind string `json:"kind"`

	// Path is the output file for file-based kinds. For database kinds it is
	// only used to place the manifest.
	Path string `json:"path"`

	// Manifest enables the <path>.manifest.json run summary. A nil value means
	// enabled.
	Manifest *bool `json:"manifest,omitempty"`

	// DB carries settings for database kinds.
	DB DBConfig `json:"db"`

	// Options is interpreted by the sink (e.g. parquet "compression").
	Options Options `json:"options"`
}

// DBConfig configures the database sinks.
type DBConfig struct {
	// DSN is the driver connection string.
	DSN string `json:"dsn"`

	// Table is the destination table (optionally schema-qualified).
	Table string `json:"table"`

	// KeepExisting appends to an existing table instead of recreating it.
	KeepExisting bool `json:"keep_existing"`
}

// ManifestEnabled reports whether a manifest should be written.
func (s Sink) ManifestEnabled() bool {
	return s.Manifest == nil || *s.Manifest
}

// Default column lists for the combined LendingClub dataset.
var (
	DefaultNumericFields = []string{
		"loan_amnt",
		"int_rate",
		"annual_inc",
		"dti",
		"delinq_2yrs",
		"fico_range_high",
		"fico_range_low",
		"inq_last_6mths",
	}

	DefaultCategoricalFields = []string{
		"term",
		"emp_length",
		"home_ownership",
		"purpose",
		"addr_state",
		"application_type",
	}

	DefaultPercentFields = []string{"int_rate", "dti"}
)

// Default returns a Pipeline populated with the standard settings.
func Default() Pipeline {
	return Pipeline{}.WithDefaults()
}

// WithDefaults fills every zero-valued field with its default and returns the
// result. Slices that were explicitly set (even to empty) are kept.
func (p Pipeline) WithDefaults() Pipeline {
	if p.Job == "" {
		p.Job = "loanprep"
	}
	if p.Source.Kind == "" {
		p.Source.Kind = "file"
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	f := &p.Features
	if f.NumericFields == nil {
		f.NumericFields = append([]string(nil), DefaultNumericFields...)
	}
	if f.CategoricalFields == nil {
		f.CategoricalFields = append([]string(nil), DefaultCategoricalFields...)
	}
	if f.PercentFields == nil {
		f.PercentFields = append([]string(nil), DefaultPercentFields...)
	}
	if f.Target.Column == "" {
		f.Target.Column = "loan_status"
	}
	if f.Target.Output == "" {
		f.Target.Output = "target"
	}
	if len(f.Target.Accept) == 0 {
		f.Target.Accept = []string{"accepted"}
	}
	if len(f.Target.Reject) == 0 {
		f.Target.Reject = []string{"rejected"}
	}
	if p.Chunking.SampleRows == 0 {
		p.Chunking.SampleRows = 500_000
	}
	if p.Chunking.ChunkSize == 0 {
		p.Chunking.ChunkSize = 100_000
	}
	if p.Sink.Kind == "" {
		p.Sink.Kind = "csv"
	}
	if p.Sink.Options == nil {
		p.Sink.Options = Options{}
	}
	return p
}

// Load decodes a pipeline from r and applies defaults. Unknown fields are
// rejected so that typos in pipeline files surface early.
func Load(r io.Reader) (Pipeline, error) {
	var p Pipeline
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p.WithDefaults(), nil
}

// LoadFile opens path and decodes it with Load.
func LoadFile(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. Used for single-character settings such as a delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object decodes to a non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
