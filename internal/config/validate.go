// Package config provides configuration models and helpers for the pipeline.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"slices"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "sink.kind",
// "features.target.accept[0]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// FileSinkKinds and DBSinkKinds list the sink kinds the binary knows about.
var (
	FileSinkKinds = []string{"csv", "parquet", "arrow"}
	DBSinkKinds   = []string{"sqlite", "postgres", "mssql", "mysql"}
)

// IsDBSink reports whether kind writes to a database table.
func IsDBSink(kind string) bool {
	return slices.Contains(DBSinkKinds, kind)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers should apply WithDefaults first;
// zero values are otherwise reported as errors.
//
// Example:
//
//	p, err := config.LoadFile(path)
//	if err != nil { ... }
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and the run manifest",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateFeatures(p.Features)...)
	issues = append(issues, validateChunking(p.Chunking)...)
	issues = append(issues, validateSink(p.Sink)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	if s.Kind != "file" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unsupported source kind %q; only \"file\" is available", s.Kind),
		})
		return issues
	}
	if strings.TrimSpace(s.File.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.file.path",
			Message:  "file source requires a non-empty path",
		})
	}
	return issues
}

// validateParser validates parser configuration.
func validateParser(p Parser) []Issue {
	var issues []Issue

	if p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only \"csv\" is available", p.Kind),
		})
		return issues
	}
	switch c := p.Options.Rune("comma", ','); c {
	case '\r', '\n', '"':
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("invalid delimiter %q", c),
		})
	}
	return issues
}

// validateFeatures checks column roles and label literals.
func validateFeatures(f Features) []Issue {
	var issues []Issue

	if len(f.NumericFields) == 0 && len(f.PercentFields) == 0 &&
		len(f.CategoricalFields) == 0 && !f.InferCategorical {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "features",
			Message:  "no numeric or categorical fields configured; output will only carry fico_score and the target",
		})
	}

	numeric := lowerSet(f.NumericFields, f.PercentFields)
	for i, c := range f.CategoricalFields {
		if _, ok := numeric[strings.ToLower(strings.TrimSpace(c))]; ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("features.categorical_fields[%d]", i),
				Message:  fmt.Sprintf("%q is also numeric; it will be treated as numeric", c),
			})
		}
	}

	t := f.Target
	if strings.TrimSpace(t.Column) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "features.target.column",
			Message:  "target column must not be empty",
		})
	}
	if strings.TrimSpace(t.Output) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "features.target.output",
			Message:  "target output name must not be empty",
		})
	}
	if len(t.Accept) == 0 || len(t.Reject) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "features.target",
			Message:  "both accept and reject literals are required",
		})
	}
	reject := lowerSet(t.Reject)
	for i, a := range t.Accept {
		if _, ok := reject[strings.ToLower(strings.TrimSpace(a))]; ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("features.target.accept[%d]", i),
				Message:  fmt.Sprintf("label %q is both accepted and rejected", a),
			})
		}
	}
	return issues
}

// validateChunking rejects non-positive read sizes.
func validateChunking(c Chunking) []Issue {
	var issues []Issue

	if c.SampleRows <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "chunking.sample_rows",
			Message:  fmt.Sprintf("sample_rows=%d; must be positive", c.SampleRows),
		})
	}
	if c.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "chunking.chunk_size",
			Message:  fmt.Sprintf("chunk_size=%d; must be positive", c.ChunkSize),
		})
	}
	if c.SampleRows > 0 && c.ChunkSize > 0 && c.SampleRows < c.ChunkSize {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "chunking.sample_rows",
			Message:  "sample_rows is smaller than chunk_size; categories unseen in the sample are discarded later",
		})
	}
	return issues
}

// validateSink validates the destination.
func validateSink(s Sink) []Issue {
	var issues []Issue

	switch {
	case slices.Contains(FileSinkKinds, s.Kind):
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sink.path",
				Message:  fmt.Sprintf("%s sink requires a non-empty path", s.Kind),
			})
		}
	case IsDBSink(s.Kind):
		if strings.TrimSpace(s.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sink.db.dsn",
				Message:  "sink.db.dsn must not be empty",
			})
		}
		if strings.TrimSpace(s.DB.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sink.db.table",
				Message:  "sink.db.table must not be empty",
			})
		}
		if s.ManifestEnabled() && strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "sink.path",
				Message:  "database sink has no path; the run manifest will be skipped",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.kind",
			Message: fmt.Sprintf("unknown sink kind %q; expected one of %s",
				s.Kind, strings.Join(append(append([]string{}, FileSinkKinds...), DBSinkKinds...), ", ")),
		})
	}
	return issues
}

func lowerSet(lists ...[]string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, l := range lists {
		for _, s := range l {
			m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
		}
	}
	return m
}
