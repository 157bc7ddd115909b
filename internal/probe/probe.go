// Package probe samples raw objects under a location and proposes a catalog
// entry for them: format, delimiter and one inferred type per column. The
// output is meant to be reviewed and then added to the catalog registry.
package probe

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"creditetl/internal/catalog"
	"creditetl/internal/config"
	"creditetl/internal/objectstore"
	"creditetl/internal/table"
)

// Options configures a probe run.
type Options struct {
	// Location is the raw-data URL, e.g. s3://bucket/raw/ or file:///data/raw.
	Location string

	// Format forces "csv" or "json"; empty detects it from the sample.
	Format string

	// Delimiter forces the CSV delimiter; 0 detects it from the header line.
	Delimiter rune

	// MaxBytes bounds how much of the first object is read (default 64 KiB).
	MaxBytes int

	// MaxRows bounds how many data rows feed type inference (default 10000).
	MaxRows int

	// Open resolves the location; nil uses objectstore.DefaultOpener.
	Open objectstore.Opener
}

// Result is the proposed catalog entry plus what the probe saw.
type Result struct {
	Entry catalog.Entry

	// Object is the key that was sampled.
	Object string

	// Rows is the number of sampled data rows.
	Rows int

	// Renames maps column names that are not plain SQL identifiers to a
	// suggested identifier. The entry keeps the original names, since the
	// readers match columns by header.
	Renames map[string]string
}

// ErrNoObjects is returned when the location holds no readable object.
var ErrNoObjects = errors.New("probe: no objects under location")

// Probe reads a sample of the first object under opt.Location and infers its
// schema.
func Probe(ctx context.Context, opt Options) (Result, error) {
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = 64 << 10
	}
	if opt.MaxRows <= 0 {
		opt.MaxRows = 10000
	}
	open := opt.Open
	if open == nil {
		open = objectstore.DefaultOpener
	}

	bucket, prefix, err := objectstore.OpenWith(ctx, opt.Location, open)
	if err != nil {
		return Result{}, err
	}
	keys, err := bucket.List(ctx, prefix)
	if err != nil {
		return Result{}, err
	}
	if len(keys) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoObjects, opt.Location)
	}

	rc, err := bucket.Open(ctx, keys[0])
	if err != nil {
		return Result{}, err
	}
	sample, err := io.ReadAll(io.LimitReader(rc, int64(opt.MaxBytes)))
	rc.Close()
	if err != nil {
		return Result{}, fmt.Errorf("probe: read %s: %w", keys[0], err)
	}
	if len(sample) == opt.MaxBytes {
		sample = dropPartialLine(sample)
	}

	format := strings.ToLower(opt.Format)
	if format == "" {
		format = detectFormat(sample)
	}

	res := Result{
		Object: keys[0],
		Entry:  catalog.Entry{Location: opt.Location, Format: format, Options: config.Options{}},
	}
	var (
		names []string
		cols  [][]string
	)
	switch format {
	case "csv":
		delim := opt.Delimiter
		if delim == 0 {
			delim = detectDelimiter(sample)
		}
		names, cols, res.Rows = sampleCSV(sample, delim, opt.MaxRows)
		res.Entry.Options["delimiter"] = string(delim)
		res.Entry.Options["has_header"] = true
	case "json":
		names, cols, res.Rows, err = sampleJSON(sample, opt.MaxRows)
		if err != nil {
			return Result{}, err
		}
	default:
		return Result{}, fmt.Errorf("probe: unsupported format %q", opt.Format)
	}

	schema := make(table.Schema, len(names))
	for i, n := range names {
		schema[i] = table.Column{Name: n, Type: InferType(cols[i])}
		if norm := NormalizeName(n); norm != n {
			if res.Renames == nil {
				res.Renames = map[string]string{}
			}
			res.Renames[n] = norm
		}
	}
	res.Entry.Columns = schema
	return res, nil
}

// detectFormat treats a sample starting with '{' as JSON lines, anything else
// as CSV.
func detectFormat(sample []byte) string {
	s := bytes.TrimSpace(bytes.TrimPrefix(sample, []byte("\uFEFF")))
	if len(s) > 0 && s[0] == '{' {
		return "json"
	}
	return "csv"
}

// detectDelimiter picks the candidate that occurs most often on the first
// line, preferring ',' on ties.
func detectDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, c := range []rune{';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// dropPartialLine cuts a truncated sample back to its last complete line.
func dropPartialLine(sample []byte) []byte {
	if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
		return sample[:i+1]
	}
	return sample
}

// sampleCSV returns the header and the values of each column. Malformed
// lines and rows whose width differs from the header are skipped.
func sampleCSV(sample []byte, delim rune, maxRows int) (names []string, cols [][]string, rows int) {
	r := csv.NewReader(bytes.NewReader(sample))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil, nil, 0
		}
		if err != nil || len(rec) == 0 {
			continue
		}
		names = make([]string, len(rec))
		for i, h := range rec {
			names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		}
		break
	}

	cols = make([][]string, len(names))
	for rows < maxRows {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) != len(names) {
			continue
		}
		for i, v := range rec {
			cols[i] = append(cols[i], v)
		}
		rows++
	}
	return names, cols, rows
}

// sampleJSON collects the values of every key across the sampled lines.
// Keys are ordered by first appearance, sorted within a line. Nested values
// are kept as JSON text, as the JSON reader does.
func sampleJSON(sample []byte, maxRows int) (names []string, cols [][]string, rows int, err error) {
	index := map[string]int{}
	lines := bytes.Split(sample, []byte("\n"))
	for n, line := range lines {
		if rows >= maxRows {
			break
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, nil, 0, fmt.Errorf("probe: json line %d: %w", n+1, err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			i, ok := index[k]
			if !ok {
				i = len(names)
				index[k] = i
				names = append(names, k)
				cols = append(cols, make([]string, rows))
			}
			cols[i] = append(cols[i], jsonText(obj[k]))
		}
		rows++
		for i := range cols {
			if len(cols[i]) < rows {
				cols[i] = append(cols[i], "")
			}
		}
	}
	return names, cols, rows, nil
}

func jsonText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	b, _ := json.Marshal(v)
	return string(b)
}
