// Package csv reads delimited text into typed records.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"creditetl/internal/config"
	"creditetl/internal/parser"
	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// Options configures the reader. Zero values are replaced by defaults in
// OptionsFrom.
type Options struct {
	// HasHeader indicates whether the first row holds the column names.
	// Without a header, columns are named by position from the declared schema
	// (and "_c<N>" beyond it).
	HasHeader bool

	// Comma is the field delimiter.
	Comma rune

	// LazyQuotes tolerates quotes in unquoted fields.
	LazyQuotes bool
}

// OptionsFrom reads delimiter, has_header and lazy_quotes from a catalog
// entry's options.
func OptionsFrom(o config.Options) Options {
	return Options{
		HasHeader:  o.Bool("has_header", true),
		Comma:      o.Rune("delimiter", ','),
		LazyQuotes: o.Bool("lazy_quotes", false),
	}
}

// Parser implements parser.Parser for CSV.
type Parser struct{ opt Options }

var _ parser.Parser = (*Parser)(nil)

// NewParser constructs a Parser.
func NewParser(opt Options) *Parser {
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	return &Parser{opt: opt}
}

const utf8BOM = "\uFEFF"

// Parse reads every row of r. Empty cells are NULL; cells that do not fit the
// declared column type are NULL and counted in Result.BadCells. Short rows are
// padded with NULL, surplus cells are dropped.
func (p *Parser) Parse(r io.Reader, declared table.Schema) (parser.Result, error) {
	cr := csv.NewReader(r)
	cr.Comma = p.opt.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = p.opt.LazyQuotes
	cr.ReuseRecord = true

	sb := parser.NewSchemaBuilder(declared)
	var (
		names []string
		types []string
		res   parser.Result
	)

	if p.opt.HasHeader {
		hdr, err := cr.Read()
		if errors.Is(err, io.EOF) {
			res.Schema = sb.Schema()
			return res, nil
		}
		if err != nil {
			return parser.Result{}, fmt.Errorf("csv: header: %w", err)
		}
		hdr = StripHeaderBOM(hdr)
		for _, h := range hdr {
			name := strings.TrimSpace(h)
			names = append(names, name)
			types = append(types, sb.Add(name, ""))
		}
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return parser.Result{}, fmt.Errorf("csv: %w", err)
		}
		if !p.opt.HasHeader {
			for len(names) < len(row) {
				name := positionalName(declared, len(names))
				names = append(names, name)
				types = append(types, sb.Add(name, ""))
			}
		}

		rec := make(records.Record, len(names))
		for i, name := range names {
			if i >= len(row) || row[i] == "" {
				rec[name] = nil
				continue
			}
			v, ok := table.Coerce(row[i], types[i])
			if !ok {
				res.BadCells++
			}
			rec[name] = v
		}
		res.Records = append(res.Records, rec)
	}

	res.Schema = sb.Schema()
	return res, nil
}

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

func positionalName(declared table.Schema, i int) string {
	if i < len(declared) {
		return declared[i].Name
	}
	return fmt.Sprintf("_c%d", i)
}
