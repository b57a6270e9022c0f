package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"loanprep/internal/storage"
	sqliteddl "loanprep/internal/storage/sqlite/ddl"
)

func newRepo(tb testing.TB, table string) *Repository {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:", Table: table})
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

// readFloats returns every row of table in insertion order.
func readFloats(tb testing.TB, r *Repository, table string, columns []string) [][]float64 {
	tb.Helper()
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = sqliteddl.Dialect.Ident(c)
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), sqliteddl.Dialect.QuoteFQN(table))
	rows, err := r.db.QueryContext(context.Background(), q)
	if err != nil {
		tb.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var out [][]float64
	for rows.Next() {
		vals := make([]float64, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			tb.Fatalf("scan: %v", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		tb.Fatalf("rows: %v", err)
	}
	return out
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	got := insertSQL("main.features", []string{"a", "term_36 months"})
	want := `INSERT INTO "main"."features" ("a", "term_36 months") VALUES (?, ?)`
	if got != want {
		t.Fatalf("insertSQL = %q; want %q", got, want)
	}
}

// TestEnsureTableAndCopyFrom creates a table with awkward column names through
// the registered bootstrapper and loads two batches.
func TestEnsureTableAndCopyFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cols := []string{"loan_amnt", "term_36 months", "emp_length_10+ years", "target"}
	r := newRepo(t, "features")

	if err := storage.EnsureTable(ctx, "sqlite", &wrappedRepo{Repository: r}, "features", cols, true); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	n, err := r.CopyFrom(ctx, cols, [][]any{{1000.0, 1.0, 0.0, 1.0}, {2500.5, 0.0, 1.0, 0.0}})
	if err != nil || n != 2 {
		t.Fatalf("CopyFrom = %d, %v", n, err)
	}
	if n, err = r.CopyFrom(ctx, cols, [][]any{{3.0, 1.0, 1.0, 1.0}}); err != nil || n != 1 {
		t.Fatalf("second CopyFrom = %d, %v", n, err)
	}

	got := readFloats(t, r, "features", cols)
	if len(got) != 3 || got[1][0] != 2500.5 || got[2][3] != 1 {
		t.Fatalf("rows = %v", got)
	}

	// Recreate drops the previous contents.
	if err := storage.EnsureTable(ctx, "sqlite", &wrappedRepo{Repository: r}, "features", cols, true); err != nil {
		t.Fatal(err)
	}
	if got := readFloats(t, r, "features", cols); len(got) != 0 {
		t.Fatalf("rows after recreate = %v", got)
	}
}

func TestCopyFrom_RowLengthMismatchRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRepo(t, "t")
	if err := r.Exec(ctx, `CREATE TABLE "t" ("a" REAL NOT NULL, "b" REAL NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	_, err := r.CopyFrom(ctx, []string{"a", "b"}, [][]any{{1.0, 2.0}, {3.0}})
	if err == nil || !strings.Contains(err.Error(), "row length") {
		t.Fatalf("err = %v", err)
	}
	if got := readFloats(t, r, "t", []string{"a", "b"}); len(got) != 0 {
		t.Fatalf("partial batch committed: %v", got)
	}
}

func TestCopyFrom_EmptyInputs(t *testing.T) {
	t.Parallel()

	r := newRepo(t, "t")
	if _, err := r.CopyFrom(context.Background(), nil, [][]any{{1}}); err == nil {
		t.Fatal("expected error for empty columns")
	}
	if n, err := r.CopyFrom(context.Background(), []string{"a"}, nil); n != 0 || err != nil {
		t.Fatalf("CopyFrom(nil rows) = %d, %v", n, err)
	}
}

func TestFileDatabaseViaFactory(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "features.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn, Table: "f"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()
	if err := repo.Exec(context.Background(), "   "); err != nil {
		t.Fatalf("blank Exec should be a no-op: %v", err)
	}
	if err := repo.Exec(context.Background(), "NOT SQL"); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{})
	if err == nil || !strings.Contains(err.Error(), "DSN") {
		t.Fatalf("err = %v", err)
	}
}
