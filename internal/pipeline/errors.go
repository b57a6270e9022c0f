package pipeline

import (
	"fmt"
	"log"
)

// Stage names used in StageError and step metrics.
const (
	StageOpen      = "open"
	StageDiscovery = "discovery"
	StageChunk     = "chunk"
	StageWrite     = "write"
	StageManifest  = "manifest"
)

// StageError identifies the stage (and chunk, when relevant) at which a run
// failed. Chunk is 0 for the schema sample and counts up from 1 for the
// chunks that follow; it is -1 when no chunk is involved.
type StageError struct {
	Stage string
	Chunk int
	Err   error
}

func (e *StageError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("%s (chunk %d): %v", e.Stage, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, chunk int, err error) error {
	return &StageError{Stage: stage, Chunk: chunk, Err: err}
}

// errAgg counts messages and keeps the first few for the end-of-run log.
// Memory is bounded by limit for add and by the number of distinct messages
// for addOnce.
type errAgg struct {
	limit int
	count int
	first []string
	seen  map[string]struct{}
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
}

// addOnce records msg only the first time it is seen. Used for per-chunk
// warnings that would otherwise repeat on every chunk.
func (a *errAgg) addOnce(msg string) bool {
	if _, ok := a.seen[msg]; ok {
		return false
	}
	if a.seen == nil {
		a.seen = make(map[string]struct{})
	}
	a.seen[msg] = struct{}{}
	a.add(msg)
	return true
}

func (a *errAgg) logSummary(what string) {
	if a.count == 0 {
		return
	}
	log.Printf("%s: %d (showing first %d)", what, a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
