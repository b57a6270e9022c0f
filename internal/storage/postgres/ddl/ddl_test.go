package ddl

import (
	"context"
	"errors"
	"strings"
	"testing"

	gddl "loanprep/internal/ddl"
)

// fakeRepo records executed statements and can fail on demand.
type fakeRepo struct {
	stmts []string
	fail  error
}

func (f *fakeRepo) CopyFrom(context.Context, []string, [][]any) (int64, error) { return 0, nil }
func (f *fakeRepo) Close()                                                     {}
func (f *fakeRepo) Exec(_ context.Context, sql string) error {
	f.stmts = append(f.stmts, sql)
	return f.fail
}

func TestMapTypeFloat(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"float", " Double ", "float64"} {
		if got := MapType(k); got != "DOUBLE PRECISION" {
			t.Errorf("MapType(%q) = %q; want %q", k, got, "DOUBLE PRECISION")
		}
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	def := gddl.FromColumns("public.features", []string{"loan_amnt", "term_36 months"}, MapType("float"))
	got, err := BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	for _, want := range []string{`CREATE TABLE IF NOT EXISTS`, `"public"."features"`, `"term_36 months" DOUBLE PRECISION NOT NULL`} {
		if !strings.Contains(got, want) {
			t.Fatalf("create SQL missing %q:\n%s", want, got)
		}
	}
	if _, err := BuildCreateTableSQL(gddl.TableDef{FQN: "t"}); err == nil {
		t.Fatal("expected error for table without columns")
	}
}

func TestBuildDropTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildDropTableSQL("public.features")
	if err != nil {
		t.Fatal(err)
	}
	if got != `DROP TABLE IF EXISTS "public"."features";` {
		t.Fatalf("drop SQL = %q", got)
	}
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	def := gddl.FromColumns("public.features", []string{"a"}, MapType("float"))

	repo := &fakeRepo{}
	if err := EnsureTable(context.Background(), repo, def, true); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.stmts) != 2 || !strings.Contains(repo.stmts[0], "DROP TABLE") || !strings.Contains(repo.stmts[1], "CREATE TABLE") {
		t.Fatalf("stmts = %q", repo.stmts)
	}

	repo = &fakeRepo{}
	if err := EnsureTable(context.Background(), repo, def, false); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.stmts) != 1 {
		t.Fatalf("keep-existing should only create; stmts = %q", repo.stmts)
	}

	boom := errors.New("boom")
	repo = &fakeRepo{fail: boom}
	if err := EnsureTable(context.Background(), repo, def, true); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want wrapped boom", err)
	}
}
