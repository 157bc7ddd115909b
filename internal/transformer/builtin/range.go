package builtin

import (
	"context"
	"math"

	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// Range keeps rows whose Column holds a number inside [Min, Max], with each
// bound inclusive or exclusive as configured. A NULL or non-numeric value
// never satisfies a comparison, so such rows are dropped.
type Range struct {
	Column string

	Min, Max                   float64
	MinInclusive, MaxInclusive bool
}

// Between returns the open interval (min, max).
func Between(column string, min, max float64) Range {
	return Range{Column: column, Min: min, Max: max}
}

// Positive keeps rows whose column is strictly greater than zero.
func Positive(column string) Range {
	return Range{Column: column, Min: 0, Max: math.Inf(1)}
}

func (r Range) Apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	if !t.HasColumn(r.Column) {
		return t, nil
	}
	return t.Filter(ctx, func(rec records.Record) (bool, error) {
		return r.contains(rec[r.Column]), nil
	})
}

func (r Range) contains(v any) bool {
	f, ok := table.Numeric(v)
	if !ok || math.IsNaN(f) {
		return false
	}
	if r.MinInclusive {
		if f < r.Min {
			return false
		}
	} else if f <= r.Min {
		return false
	}
	if r.MaxInclusive {
		return f <= r.Max
	}
	return f < r.Max
}
