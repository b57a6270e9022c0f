// Package sink writes engineered chunks to their destination.
//
// Every Writer follows the same life cycle: Begin creates the destination
// fresh and records the canonical schema exactly once, each Append adds the
// rows of one aligned chunk, and Close flushes and releases resources.
// Kinds register themselves from init, mirroring the storage backends.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"loanprep/internal/config"
	"loanprep/internal/frame"
	"loanprep/internal/schema"
)

// Writer is the destination of a run.
type Writer interface {
	// Begin creates (or truncates) the destination and writes the header.
	Begin(ctx context.Context, s schema.Schema) error

	// Append writes the rows of f, which must already be aligned to the
	// schema passed to Begin. It returns the number of rows written.
	Append(ctx context.Context, f *frame.Frame) (int64, error)

	// Close flushes buffered output. It is safe to call more than once.
	Close() error
}

// Factory builds a Writer from the sink configuration.
type Factory func(cfg config.Sink) (Writer, error)

var (
	// ErrNotStarted is returned by Append before a successful Begin.
	ErrNotStarted = errors.New("sink: Append before Begin")

	// ErrStarted is returned by a second Begin.
	ErrStarted = errors.New("sink: Begin called twice")
)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New builds the Writer registered for cfg.Kind.
func New(cfg config.Sink) (Writer, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported sink.kind=%s", cfg.Kind)
	}
	return f(cfg)
}

// Kinds returns a sorted snapshot of the registered kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// checkWidth rejects a chunk that was not aligned to the schema.
func checkWidth(f *frame.Frame, width int) error {
	if f.Width() != width && f.Len() > 0 {
		return fmt.Errorf("sink: chunk has %d columns, schema has %d", f.Width(), width)
	}
	return nil
}

// createFile truncates (or creates) path, making parent directories first.
func createFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("sink: empty output path")
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
	return f, nil
}
