package storage

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"creditetl/internal/ddl"
)

type fakeRepo struct {
	execs  []string
	rows   int
	closed bool
}

func (f *fakeRepo) CopyFrom(_ context.Context, _ []string, rows [][]any) (int64, error) {
	f.rows += len(rows)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(_ context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeRepo) Close() { f.closed = true }

// TestRegisterAndNew checks that a registered kind is returned by New and is
// matched case-insensitively.
func TestRegisterAndNew(t *testing.T) {
	var got Config
	Register("fake", func(_ context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "FAKE", DSN: "x", Database: "retail_db", Table: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if repo == nil || got.Database != "retail_db" || got.Table != "t" {
		t.Fatalf("repo=%v cfg=%+v", repo, got)
	}

	found := false
	for _, k := range ListKinds() {
		found = found || k == "fake"
	}
	if !found {
		t.Fatalf("fake not in ListKinds: %v", ListKinds())
	}
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "oracle"})
	if err == nil || !strings.Contains(err.Error(), `unsupported kind "oracle"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestEnsureTable(t *testing.T) {
	RegisterDialect("fake", ddl.Postgres)
	repo := &fakeRepo{}
	def := ddl.TableDef{FQN: "credit_risk_clean", Columns: []ddl.ColumnDef{{Name: "loan_status", SQLType: "TEXT", Nullable: true}}}

	if err := EnsureTable(context.Background(), repo, "fake", def); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if len(repo.execs) != 1 || !strings.HasPrefix(repo.execs[0], `CREATE TABLE IF NOT EXISTS "credit_risk_clean"`) {
		t.Fatalf("execs = %q", repo.execs)
	}

	if err := EnsureTable(context.Background(), repo, "nodialect", def); err == nil {
		t.Fatal("expected error for kind without dialect")
	}
	if err := EnsureTable(context.Background(), repo, "fake", ddl.TableDef{FQN: "t"}); err == nil {
		t.Fatal("expected error for empty definition")
	}
}

func feed(n int) <-chan []any {
	in := make(chan []any, n)
	for i := 0; i < n; i++ {
		in <- []any{i}
	}
	close(in)
	return in
}

// TestLoadBatches groups rows and sums the totals reported by copyFn.
func TestLoadBatches(t *testing.T) {
	var calls int32
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return int64(len(rows)), nil
	}
	total, err := LoadBatches(context.Background(), []string{"c"}, feed(7), 3, copyFn, nil)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if total != 7 || calls != 3 {
		t.Fatalf("total=%d calls=%d, want 7/3", total, calls)
	}
}

func TestLoadBatchesStopsOnError(t *testing.T) {
	boom := errors.New("copy failed")
	batches := 0
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, boom
		}
		return int64(len(rows)), nil
	}
	total, err := LoadBatches(context.Background(), []string{"c"}, feed(5), 2, copyFn, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if total != 2 || batches != 2 {
		t.Fatalf("total=%d batches=%d, want 2/2", total, batches)
	}
}

func TestLoadBatchesValidation(t *testing.T) {
	nop := func(context.Context, []string, [][]any) (int64, error) { return 0, nil }
	if _, err := LoadBatches(context.Background(), nil, feed(0), 0, nop, nil); err == nil {
		t.Fatal("expected error for batchSize 0")
	}
	if _, err := LoadBatches(context.Background(), nil, feed(0), 1, nil, nil); err == nil {
		t.Fatal("expected error for nil copyFn")
	}
}

func TestLoadBatchesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := make(chan []any)
	nop := func(context.Context, []string, [][]any) (int64, error) { return 0, nil }
	if _, err := LoadBatches(ctx, nil, in, 1, nop, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
