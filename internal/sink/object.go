// Package sink writes the cleaned table to its two destinations: CSV objects
// in the clean zone and a relational table.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"creditetl/internal/objectstore"
	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// ObjectWriter writes one CSV object per non-empty partition. Existing
// objects under Prefix are never removed, so repeated runs append.
type ObjectWriter struct {
	Bucket objectstore.Bucket
	Prefix string
	Header bool
	// RunID makes object names unique per run; empty generates one.
	RunID string
	Log   *zap.Logger
}

// PartName returns the object key of partition i.
func (w ObjectWriter) PartName(i int, runID string) string {
	return path.Join(w.Prefix, fmt.Sprintf("part-%05d-%s.csv", i, runID))
}

// Write stores t and returns the keys written.
func (w ObjectWriter) Write(ctx context.Context, t *table.Table) ([]string, error) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if t.Count() == 0 {
		log.Info("sink: empty table, no objects written", zap.String("prefix", w.Prefix))
		return nil, nil
	}
	runID := w.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	cols := t.Columns()
	var keys []string
	for i, part := range t.Partitions() {
		if len(part) == 0 {
			continue
		}
		key := w.PartName(len(keys), runID)
		if err := w.put(ctx, key, cols, part); err != nil {
			return keys, fmt.Errorf("sink: write %s: %w", key, err)
		}
		keys = append(keys, key)
		log.Debug("sink: object written", zap.String("key", key), zap.Int("partition", i), zap.Int("rows", len(part)))
	}
	log.Info("sink: objects written", zap.Int("objects", len(keys)), zap.Int("rows", t.Count()), zap.String("prefix", w.Prefix))
	return keys, nil
}

// put streams the CSV encoding of rows into the bucket through a pipe.
func (w ObjectWriter) put(ctx context.Context, key string, cols []string, rows []records.Record) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(encodeCSV(pw, cols, rows, w.Header))
	}()
	err := w.Bucket.Put(ctx, key, pr)
	// Unblock the encoder if Put returned before draining the pipe.
	pr.CloseWithError(io.ErrClosedPipe)
	return err
}

func encodeCSV(dst io.Writer, cols []string, rows []records.Record, header bool) error {
	cw := csv.NewWriter(dst)
	if header {
		if err := cw.Write(cols); err != nil {
			return err
		}
	}
	rec := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			rec[i] = formatValue(r[c])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatValue renders a cell. NULL is the empty field and doubles always
// carry a fractional part, so 0.0 stays distinguishable from the integer 0.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case bool:
		return strconv.FormatBool(x)
	}
	return cast.ToString(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
