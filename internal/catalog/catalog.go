// Package catalog maps logical database/table names to the physical location,
// format and schema of their data. The job only reads from it.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"creditetl/internal/config"
	"creditetl/internal/table"
)

// ErrNotFound is returned when a database or table is not registered.
var ErrNotFound = errors.New("catalog entry not found")

// Entry is the catalog metadata of one table.
type Entry struct {
	Database string `json:"-"`
	Table    string `json:"-"`

	// Location is a URL such as s3://bucket/raw/ or file:///data/raw.
	Location string `json:"location"`

	// Format is "csv" (default) or "json" (JSON lines).
	Format string `json:"format"`

	// Encoding names the character set of the data ("" means UTF-8).
	Encoding string `json:"encoding"`

	// Options carries format options (delimiter, has_header, ...).
	Options config.Options `json:"options"`

	// Columns is the declared schema. Data columns not listed here are still
	// read, as strings.
	Columns table.Schema `json:"columns"`
}

// Catalog resolves table metadata.
type Catalog interface {
	Lookup(ctx context.Context, database, table string) (Entry, error)
}

// Registry is an in-memory Catalog, usually loaded from a JSON file of the
// form {"databases": {"<db>": {"<table>": Entry}}}.
type Registry struct {
	dbs map[string]map[string]Entry
}

var _ Catalog = (*Registry)(nil)

// NewRegistry builds a Registry from database → table → entry.
func NewRegistry(dbs map[string]map[string]Entry) *Registry {
	if dbs == nil {
		dbs = map[string]map[string]Entry{}
	}
	return &Registry{dbs: dbs}
}

// LoadRegistry reads a registry file.
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var doc struct {
		Databases map[string]map[string]Entry `json:"databases"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	return NewRegistry(doc.Databases), nil
}

// Lookup returns the entry for database.table.
func (r *Registry) Lookup(ctx context.Context, database, tbl string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	tables, ok := r.dbs[database]
	if !ok {
		return Entry{}, fmt.Errorf("%w: database %q", ErrNotFound, database)
	}
	e, ok := tables[tbl]
	if !ok {
		return Entry{}, fmt.Errorf("%w: table %q in database %q", ErrNotFound, tbl, database)
	}
	if strings.TrimSpace(e.Location) == "" {
		return Entry{}, fmt.Errorf("catalog: %s.%s has no location", database, tbl)
	}
	e.Database, e.Table = database, tbl
	if e.Format == "" {
		e.Format = "csv"
	}
	if e.Options == nil {
		e.Options = config.Options{}
	}
	return e, nil
}
