// Package json reads JSON-lines input (one object per line) into typed
// records.
package json

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"creditetl/internal/parser"
	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// maxLine bounds a single JSON line.
const maxLine = 16 << 20

// Parser implements parser.Parser for JSON lines.
type Parser struct{}

var _ parser.Parser = Parser{}

// Parse decodes each non-blank line as an object. Declared columns are
// coerced to their type; undeclared keys are read as strings, added to the
// schema in sorted order per line. Nested values are kept as their JSON text.
func (Parser) Parse(r io.Reader, declared table.Schema) (parser.Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	sb := parser.NewSchemaBuilder(declared)
	var res parser.Result
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return parser.Result{}, fmt.Errorf("json: line %d: %w", line, err)
		}

		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		rec := make(records.Record, len(obj))
		for _, k := range keys {
			typ := sb.Add(k, "")
			v := obj[k]
			switch v.(type) {
			case map[string]any, []any:
				raw, _ := json.Marshal(v)
				v = string(raw)
			}
			cv, ok := table.Coerce(v, typ)
			if !ok {
				res.BadCells++
			}
			rec[k] = cv
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return parser.Result{}, fmt.Errorf("json: %w", err)
	}
	res.Schema = sb.Schema()
	return res, nil
}
