package builtin

import (
	"context"
	"strings"

	"github.com/spf13/cast"

	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// UpperTrim rewrites Column to upper(trim(value)). NULL stays NULL and
// non-string values are stringified first.
type UpperTrim struct {
	Column string
}

func (u UpperTrim) Apply(ctx context.Context, t *table.Table) (*table.Table, error) {
	if !t.HasColumn(u.Column) {
		return t, nil
	}
	return t.Map(ctx, func(rec records.Record) (records.Record, error) {
		if rec.IsNull(u.Column) {
			return rec, nil
		}
		s, err := cast.ToStringE(rec[u.Column])
		if err != nil {
			return nil, err
		}
		norm := strings.ToUpper(strings.TrimSpace(s))
		if v, ok := rec[u.Column].(string); ok && v == norm {
			return rec, nil
		}
		out := rec.Clone()
		out[u.Column] = norm
		return out, nil
	})
}
