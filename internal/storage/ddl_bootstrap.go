package storage

import (
	"context"
	"fmt"
	"sync"

	"loanprep/internal/ddl"
)

// DDLBootstrapper prepares the destination table for a backend. When
// recreate is true an existing table is dropped first so every run starts
// from a fresh destination; otherwise the table is created only if missing.
//
// Backends register their implementation for a storage kind at init time.
type DDLBootstrapper func(ctx context.Context, repo Repository, def ddl.TableDef, recreate bool) error

var (
	ddlMu    sync.RWMutex
	ddlFns   = map[string]DDLBootstrapper{}
	ddlTypes = map[string]string{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper and the float column
// type for the given storage kind.
func RegisterDDL(kind, floatType string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
	ddlTypes[kind] = floatType
}

// EnsureTable builds a table definition for columns and applies it through
// the bootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, table string, columns []string, recreate bool) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	typ := ddlTypes[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, ddl.FromColumns(table, columns, typ), recreate)
}
