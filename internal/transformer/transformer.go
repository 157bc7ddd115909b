// Package transformer defines whole-table transforms applied by the cleaner.
package transformer

import (
	"context"

	"creditetl/internal/table"
)

// Transformer rewrites a table into a new one. Implementations must not
// mutate the rows of their input.
type Transformer interface {
	Apply(ctx context.Context, t *table.Table) (*table.Table, error)
}

// Func adapts a plain function to Transformer.
type Func func(ctx context.Context, t *table.Table) (*table.Table, error)

// Apply calls f.
func (f Func) Apply(ctx context.Context, t *table.Table) (*table.Table, error) { return f(ctx, t) }

// Chain is an ordered list of transformers. Nil entries are skipped.
type Chain []Transformer

func (c Chain) Apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	out := t
	for _, tr := range c {
		if tr == nil {
			continue
		}
		var err error
		if out, err = tr.Apply(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
