// Package table implements the in-memory, partitioned table the job moves
// through its stages. A Table is a schema plus a list of partitions; row-wise
// operations run one goroutine per partition (bounded by the table's
// parallelism) and always return a new Table, leaving the receiver untouched.
//
// The partition layout mirrors how the data was read (one partition per
// source object) until Coalesce merges it; sinks write one object per
// partition.
package table

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"creditetl/pkg/records"
)

// Column is a named, typed column of a Schema. Type is a logical kind such as
// "bigint", "double", "boolean" or "string".
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is the ordered list of columns of a Table.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of name in s, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Table is an immutable, partitioned collection of records.
type Table struct {
	schema      Schema
	parts       [][]records.Record
	parallelism int
}

// Option configures a Table at construction time.
type Option func(*Table)

// WithParallelism bounds how many partitions are processed concurrently.
// Values < 1 fall back to GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.parallelism = n
		}
	}
}

// New builds a Table from an explicit partition layout. A nil parts slice
// yields a table with zero partitions.
func New(schema Schema, parts [][]records.Record, opts ...Option) *Table {
	t := &Table{
		schema:      append(Schema(nil), schema...),
		parts:       parts,
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// FromRecords spreads recs round-robin over n partitions (n < 1 means 1).
func FromRecords(schema Schema, recs []records.Record, n int, opts ...Option) *Table {
	if n < 1 {
		n = 1
	}
	parts := make([][]records.Record, n)
	for i, r := range recs {
		parts[i%n] = append(parts[i%n], r)
	}
	return New(schema, parts, opts...)
}

// derive returns an empty table sharing t's schema and parallelism.
func (t *Table) derive(parts [][]records.Record) *Table {
	return &Table{schema: t.schema, parts: parts, parallelism: t.parallelism}
}

// Schema returns a copy of the table schema.
func (t *Table) Schema() Schema { return append(Schema(nil), t.schema...) }

// Columns returns the column names in schema order.
func (t *Table) Columns() []string { return t.schema.Names() }

// HasColumn reports whether name is part of the observed schema.
func (t *Table) HasColumn(name string) bool { return t.schema.Index(name) >= 0 }

// ColumnType returns the logical type of name ("" when the column is absent).
func (t *Table) ColumnType(name string) string {
	if i := t.schema.Index(name); i >= 0 {
		return strings.ToLower(t.schema[i].Type)
	}
	return ""
}

// NumPartitions returns the number of partitions, including empty ones.
func (t *Table) NumPartitions() int { return len(t.parts) }

// Partitions exposes the partition layout. Callers must not modify it.
func (t *Table) Partitions() [][]records.Record { return t.parts }

// Count returns the total number of rows.
func (t *Table) Count() int {
	n := 0
	for _, p := range t.parts {
		n += len(p)
	}
	return n
}

// Rows returns all rows flattened in partition order.
func (t *Table) Rows() []records.Record {
	out := make([]records.Record, 0, t.Count())
	for _, p := range t.parts {
		out = append(out, p...)
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(ctx context.Context, keep func(records.Record) (bool, error)) (*Table, error) {
	return t.eachPartition(ctx, func(part []records.Record) ([]records.Record, error) {
		out := make([]records.Record, 0, len(part))
		for _, r := range part {
			ok, err := keep(r)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

// Map replaces every row with fn(row). fn must not mutate its argument; use
// records.Record.Clone when a modified copy is needed.
func (t *Table) Map(ctx context.Context, fn func(records.Record) (records.Record, error)) (*Table, error) {
	return t.eachPartition(ctx, func(part []records.Record) ([]records.Record, error) {
		out := make([]records.Record, len(part))
		for i, r := range part {
			nr, err := fn(r)
			if err != nil {
				return nil, err
			}
			out[i] = nr
		}
		return out, nil
	})
}

// Coalesce merges adjacent partitions so that at most n remain. It never
// increases the partition count and never moves rows between non-adjacent
// partitions.
func (t *Table) Coalesce(n int) *Table {
	if n < 1 {
		n = 1
	}
	if len(t.parts) <= n {
		return t
	}
	merged := make([][]records.Record, n)
	for i, p := range t.parts {
		g := i * n / len(t.parts)
		merged[g] = append(merged[g], p...)
	}
	return t.derive(merged)
}

// eachPartition runs fn over every partition concurrently and assembles the
// results into a new Table.
func (t *Table) eachPartition(ctx context.Context, fn func([]records.Record) ([]records.Record, error)) (*Table, error) {
	out := make([][]records.Record, len(t.parts))
	err := t.forEachPartition(ctx, func(i int, part []records.Record) error {
		res, err := fn(part)
		if err != nil {
			return err
		}
		out[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t.derive(out), nil
}

// forEachPartition calls fn(i, partition) for every partition, at most
// t.parallelism at a time. The first error cancels the remaining work and is
// returned annotated with the partition index.
func (t *Table) forEachPartition(ctx context.Context, fn func(int, []records.Record) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.parallelism)
	for i, part := range t.parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(i, part); err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
