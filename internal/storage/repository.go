// Package storage contains the storage-agnostic contracts used by the
// database sinks, plus a small factory registry. Concrete backends
// (postgres, mssql, mysql, sqlite) register themselves from init; importing
// loanprep/internal/storage/all enables every one of them.
package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Repository is the minimal surface a database sink needs: bulk-insert rows
// into the configured table, run DDL, and release the connection.
type Repository interface {
	// CopyFrom inserts rows (aligned to columns) using the backend's fastest
	// bulk primitive and returns the number of rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Config is the backend-neutral connection description.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Factory opens a Repository for one backend.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

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

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
