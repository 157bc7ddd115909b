package sink

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"creditetl/internal/connections"
	"creditetl/internal/ddl"
	"creditetl/internal/storage"
	"creditetl/internal/table"
)

// Resolver looks up a named connection.
type Resolver interface {
	Resolve(id string) (connections.Connection, error)
}

// LazyResolver loads its registry on the first Resolve. A registry that
// cannot be loaded then fails the relational write, after the object output.
type LazyResolver struct {
	Load func() (Resolver, error)

	once sync.Once
	r    Resolver
	err  error
}

// Resolve implements Resolver. The load result, error included, is kept
// for later calls.
func (l *LazyResolver) Resolve(id string) (connections.Connection, error) {
	l.once.Do(func() {
		if l.Load == nil {
			l.err = fmt.Errorf("no connection registry")
			return
		}
		l.r, l.err = l.Load()
	})
	if l.err != nil {
		return connections.Connection{}, l.err
	}
	return l.r.Resolve(id)
}

// Target names the destination table of the relational write.
type Target struct {
	Connection string
	Database   string
	Table      string
	// AutoCreate creates the table from the cleaned schema when missing.
	AutoCreate bool
}

// RelationalWriter appends a table to a relational database.
type RelationalWriter struct {
	Connections Resolver
	// Open opens a repository; nil uses storage.New.
	Open      func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	BatchSize int
	Log       *zap.Logger
}

// Write appends every row of t to target and returns the inserted count.
// There is no retry; the first error is returned.
func (w RelationalWriter) Write(ctx context.Context, t *table.Table, target Target) (int64, error) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if w.Connections == nil {
		return 0, fmt.Errorf("relational: no connection registry")
	}
	conn, err := w.Connections.Resolve(target.Connection)
	if err != nil {
		return 0, fmt.Errorf("relational: %w", err)
	}
	open := w.Open
	if open == nil {
		open = storage.New
	}

	cols := t.Columns()
	repo, err := open(ctx, storage.Config{
		Kind:     conn.Kind,
		DSN:      conn.DSN,
		Database: target.Database,
		Table:    target.Table,
		Columns:  cols,
	})
	if err != nil {
		return 0, fmt.Errorf("relational: open %s: %w", target.Connection, err)
	}
	defer repo.Close()

	if target.AutoCreate {
		d, err := storage.DialectFor(conn.Kind)
		if err != nil {
			return 0, fmt.Errorf("relational: %w", err)
		}
		if err := storage.EnsureTable(ctx, repo, conn.Kind, ddl.FromSchema(target.Table, t.Schema(), d)); err != nil {
			return 0, fmt.Errorf("relational: ensure %s: %w", target.Table, err)
		}
	}
	if t.Count() == 0 {
		log.Info("sink: no rows for relational target", zap.String("table", target.Table))
		return 0, nil
	}

	batch := w.BatchSize
	if batch <= 0 {
		batch = 5000
	}
	rowsCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	in := make(chan []any, batch)
	go func() {
		defer close(in)
		for _, part := range t.Partitions() {
			for _, r := range part {
				row := make([]any, len(cols))
				for i, c := range cols {
					row[i] = r[c]
				}
				select {
				case in <- row:
				case <-rowsCtx.Done():
					return
				}
			}
		}
	}()

	n, err := storage.LoadBatches(ctx, cols, in, batch, repo.CopyFrom, log)
	if err != nil {
		return n, fmt.Errorf("relational: load %s.%s: %w", target.Database, target.Table, err)
	}
	log.Info("sink: relational rows written",
		zap.String("connection", target.Connection),
		zap.String("database", target.Database),
		zap.String("table", target.Table),
		zap.Int64("rows", n),
	)
	return n, nil
}
