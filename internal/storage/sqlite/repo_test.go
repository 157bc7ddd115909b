package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"creditetl/internal/ddl"
	"creditetl/internal/storage"
	"creditetl/internal/table"
)

func openTemp(t *testing.T, tbl string) storage.Repository {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{
		Kind:     "sqlite",
		DSN:      filepath.Join(t.TempDir(), "clean.db"),
		Database: "ignored",
		Table:    tbl,
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func count(t *testing.T, repo storage.Repository, tbl string) int {
	t.Helper()
	w := repo.(*wrappedRepo)
	var n int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM " + fqn(tbl)).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// TestEnsureTableAndAppend creates the table from a schema, appends twice and
// checks that nothing is overwritten.
func TestEnsureTableAndAppend(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t, "credit_risk_clean")

	schema := table.Schema{
		{Name: "person_age", Type: "bigint"},
		{Name: "loan_int_rate", Type: "double"},
		{Name: "loan_status", Type: "string"},
	}
	def := ddl.FromSchema("credit_risk_clean", schema, ddl.SQLite)
	for i := 0; i < 2; i++ {
		if err := storage.EnsureTable(ctx, repo, "sqlite", def); err != nil {
			t.Fatalf("EnsureTable #%d: %v", i, err)
		}
	}

	cols := schema.Names()
	rows := [][]any{
		{int64(40), 0.0, "PAID"},
		{int64(25), nil, nil},
	}
	for i := 0; i < 2; i++ {
		n, err := repo.CopyFrom(ctx, cols, rows)
		if err != nil {
			t.Fatalf("CopyFrom #%d: %v", i, err)
		}
		if n != 2 {
			t.Fatalf("CopyFrom #%d = %d, want 2", i, n)
		}
	}
	if got := count(t, repo, "credit_risk_clean"); got != 4 {
		t.Fatalf("rows = %d, want 4", got)
	}

	w := repo.(*wrappedRepo)
	var status string
	if err := w.db.QueryRow(`SELECT "loan_status" FROM "credit_risk_clean" WHERE "person_age" = 40 LIMIT 1`).Scan(&status); err != nil {
		t.Fatalf("select: %v", err)
	}
	if status != "PAID" {
		t.Fatalf("status = %q", status)
	}
}

func TestCopyFromIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t, "t")
	if err := repo.Exec(ctx, `CREATE TABLE "t" ("a" INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.CopyFrom(ctx, []string{"a"}, [][]any{{int64(1)}, {nil}}); err == nil {
		t.Fatal("expected NOT NULL violation")
	}
	if got := count(t, repo, "t"); got != 0 {
		t.Fatalf("rows after failed copy = %d, want 0", got)
	}

	if _, err := repo.CopyFrom(ctx, []string{"a"}, [][]any{{int64(1), int64(2)}}); err == nil {
		t.Fatal("expected row length error")
	}
	if _, err := repo.CopyFrom(ctx, nil, [][]any{{1}}); err == nil {
		t.Fatal("expected error for empty columns")
	}
	if n, err := repo.CopyFrom(ctx, []string{"a"}, nil); err != nil || n != 0 {
		t.Fatalf("empty copy = %d, %v", n, err)
	}
}

func TestCopyFromMissingTable(t *testing.T) {
	repo := openTemp(t, "missing")
	if _, err := repo.CopyFrom(context.Background(), []string{"a"}, [][]any{{1}}); err == nil {
		t.Fatal("expected error for missing table")
	}
}

func TestNewRepositoryRequiresDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestAdapterUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	fake := &Repository{}
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return fake, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "x.db", Table: "events", Columns: []string{"id"}})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != "x.db" || got.Table != "events" || len(got.Columns) != 1 {
		t.Fatalf("cfg = %+v", got)
	}
	if w, ok := repo.(*wrappedRepo); !ok || w.Repository != fake {
		t.Fatalf("repo = %T", repo)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not call closeFn")
	}
}
