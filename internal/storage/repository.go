// Package storage is the backend-agnostic contract of the relational sink.
//
// Backends (postgres, mysql, mssql, sqlite) register a Factory and a DDL
// dialect from their init functions; callers import storage/all for the side
// effects and open repositories by kind through New.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"creditetl/internal/ddl"
)

// Repository appends rows to one target table.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and reports how many
	// were inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
	// Database, when set, is the database the connection uses; backends apply
	// it to the DSN.
	Database string
	// Table is the target table, unqualified or schema-qualified.
	Table   string
	Columns []string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
	dialects  = map[string]ddl.Dialect{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(kind)] = f
}

// RegisterDialect installs the DDL dialect for kind.
func RegisterDialect(kind string, d ddl.Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[strings.ToLower(kind)] = d
}

// New opens a repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(cfg.Kind)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %s)", cfg.Kind, strings.Join(ListKinds(), ", "))
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DialectFor returns the DDL dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[strings.ToLower(kind)]
	if !ok {
		return ddl.Dialect{}, fmt.Errorf("storage: no DDL dialect registered for kind %q", kind)
	}
	return d, nil
}

// EnsureTable renders def in the dialect of kind and applies it through repo.
// The statement is idempotent, so an existing table is left untouched.
func EnsureTable(ctx context.Context, repo Repository, kind string, def ddl.TableDef) error {
	d, err := DialectFor(kind)
	if err != nil {
		return err
	}
	stmt, err := ddl.BuildCreateTable(def, d)
	if err != nil {
		return fmt.Errorf("storage: build DDL: %w", err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("storage: apply DDL: %w", err)
	}
	return nil
}
