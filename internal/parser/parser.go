// Package parser holds what every input format shares: the parse result, the
// character-set decoding applied before parsing and schema reconciliation
// between declared catalog columns and the columns observed in the data.
package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"creditetl/internal/table"
	"creditetl/pkg/records"
)

// Result is the parsed content of one object.
type Result struct {
	// Schema is the declared schema followed by undeclared columns in the
	// order they were first seen.
	Schema  table.Schema
	Records []records.Record
	// BadCells counts values that could not be coerced to their declared type
	// and were read as NULL.
	BadCells int
}

// Parser turns raw bytes into records typed by declared.
type Parser interface {
	Parse(r io.Reader, declared table.Schema) (Result, error)
}

// Decode wraps r so that it yields UTF-8 for the named character set. An
// empty name or any UTF-8 alias returns r unchanged.
func Decode(r io.Reader, charset string) (io.Reader, error) {
	name := strings.TrimSpace(charset)
	if name == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("parser: unknown encoding %q: %w", charset, err)
	}
	if enc == unicode.UTF8 || enc == encoding.Nop {
		return r, nil
	}
	return enc.NewDecoder().Reader(r), nil
}

// SchemaBuilder accumulates the observed schema of a parse.
type SchemaBuilder struct {
	schema table.Schema
	index  map[string]int
}

// NewSchemaBuilder starts from the declared columns.
func NewSchemaBuilder(declared table.Schema) *SchemaBuilder {
	b := &SchemaBuilder{index: make(map[string]int, len(declared))}
	for _, c := range declared {
		b.Add(c.Name, c.Type)
	}
	return b
}

// Add registers name (with typ when it is new) and returns its declared type.
func (b *SchemaBuilder) Add(name, typ string) string {
	if i, ok := b.index[name]; ok {
		return b.schema[i].Type
	}
	if typ == "" {
		typ = table.KindString
	}
	b.index[name] = len(b.schema)
	b.schema = append(b.schema, table.Column{Name: name, Type: typ})
	return typ
}

// Schema returns the accumulated schema.
func (b *SchemaBuilder) Schema() table.Schema { return b.schema }
