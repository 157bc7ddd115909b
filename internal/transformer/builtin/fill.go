package builtin

import (
	"context"
	"fmt"

	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// FillNull replaces NULL values of Column with Value. Value is converted to
// the column's type first; non-null values are left untouched.
//
// A numeric Value only fills int and double columns, a string only string
// columns and a bool only boolean columns. Any other pairing leaves the
// table unchanged, the way fillna skips columns of another type.
type FillNull struct {
	Column string
	Value  any
}

func (f FillNull) Apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	if !t.HasColumn(f.Column) {
		return t, nil
	}
	typ := t.ColumnType(f.Column)
	if !fills(valueKind(f.Value), table.Kind(typ)) {
		return t, nil
	}
	fill, ok := table.Coerce(f.Value, typ)
	if !ok || fill == nil {
		return nil, fmt.Errorf("fill %s: value %v is not a valid %s", f.Column, f.Value, typ)
	}
	return t.Map(ctx, func(rec records.Record) (records.Record, error) {
		if !rec.IsNull(f.Column) {
			return rec, nil
		}
		out := rec.Clone()
		out[f.Column] = fill
		return out, nil
	})
}

// valueKind returns the logical kind of a fill value, or "" for types the
// column coercion has to judge.
func valueKind(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return table.KindInt
	case float32, float64:
		return table.KindDouble
	case bool:
		return table.KindBool
	case string:
		return table.KindString
	default:
		return ""
	}
}

func fills(value, column string) bool {
	switch value {
	case "":
		return true
	case table.KindInt, table.KindDouble:
		return column == table.KindInt || column == table.KindDouble
	default:
		return value == column
	}
}
