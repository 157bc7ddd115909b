package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"creditetl/internal/table"
)

// Result reports what Write produced.
type Result struct {
	Objects        []string
	RelationalRows int64
}

// Writer sends the cleaned table to object storage and then to the
// relational target.
type Writer struct {
	Object     ObjectWriter
	Relational RelationalWriter
	Target     Target
	Log        *zap.Logger
}

// Write coalesces a non-empty table to a single partition, writes the object
// output and then the relational output. An object-storage failure stops the
// write. A relational failure is logged and returned wrapped.
func (w Writer) Write(ctx context.Context, t *table.Table) (Result, error) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	var res Result

	out := t
	if t.Count() >= 1 {
		out = t.Coalesce(1)
	}

	keys, err := w.Object.Write(ctx, out)
	res.Objects = keys
	if err != nil {
		return res, err
	}

	n, err := w.Relational.Write(ctx, out, w.Target)
	res.RelationalRows = n
	if err != nil {
		log.Error("relational write failed",
			zap.String("connection", w.Target.Connection),
			zap.String("table", w.Target.Table),
			zap.Error(err),
		)
		return res, fmt.Errorf("relational write failed: %w", err)
	}
	return res, nil
}
