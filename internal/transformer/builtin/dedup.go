// Package builtin contains the column-level transforms used by the cleaner.
// Every transform is schema-adaptive: when its column is absent from the
// observed schema it returns the input table unchanged.
package builtin

import (
	"context"

	"creditetl/internal/table"
)

// DropDuplicates removes rows that are equal across every schema column.
// The first occurrence in partition order wins.
type DropDuplicates struct{}

func (DropDuplicates) Apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	return t.DropDuplicates(ctx)
}
