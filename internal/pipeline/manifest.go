package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ManifestSuffix is appended to the output path to name the run manifest.
const ManifestSuffix = ".manifest.json"

// Manifest is the JSON record written next to the output after a successful
// run.
type Manifest struct {
	Job         string    `json:"job"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	SinkKind    string    `json:"sink_kind"`
	Table       string    `json:"table,omitempty"`
	Columns     []string  `json:"columns"`
	Fingerprint string    `json:"schema_fingerprint"`
	SampleRows  int       `json:"sample_rows"`
	ChunkSize   int       `json:"chunk_size"`
	Chunks      int       `json:"chunks"`
	RowsRead    int64     `json:"rows_read"`
	RowsWritten int64     `json:"rows_written"`
	Dropped     int64     `json:"rows_dropped_label"`
	ParseErrors int64     `json:"parse_errors"`
	Discarded   []string  `json:"discarded_columns,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// ManifestPath returns the manifest location for output.
func ManifestPath(output string) string { return output + ManifestSuffix }

// WriteManifest writes m as indented JSON to path, replacing any previous
// file.
func WriteManifest(path string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest decodes a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
