package ddl

import (
	"strings"

	"creditetl/internal/table"
)

// ColumnDef describes a single column of a table definition.
//
// Name is unquoted; quoting happens at render time. Default is emitted as a
// raw SQL expression.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the dotted table name (e.g. "retail_db.credit_risk_clean")
// and its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect captures what differs between relational targets when rendering DDL.
type Dialect struct {
	Name string
	// Quote quotes a single identifier part.
	Quote func(string) string
	// MapType maps a logical kind (see table.Kind) to a SQL type.
	MapType func(kind string) string
	// GuardObjectID renders the T-SQL IF OBJECT_ID(...) IS NULL guard instead of
	// CREATE TABLE IF NOT EXISTS.
	GuardObjectID bool
}

// QuoteFQN quotes every dot-separated part of fqn.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = d.Quote(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

func quoteWith(open, close string) func(string) string {
	return func(s string) string {
		return open + strings.ReplaceAll(s, close, close+close) + close
	}
}

func typeMap(i, d, b, s string) func(string) string {
	return func(kind string) string {
		switch table.Kind(kind) {
		case table.KindInt:
			return i
		case table.KindDouble:
			return d
		case table.KindBool:
			return b
		default:
			return s
		}
	}
}

// Supported dialects.
var (
	Postgres = Dialect{
		Name:    "postgres",
		Quote:   quoteWith(`"`, `"`),
		MapType: typeMap("BIGINT", "DOUBLE PRECISION", "BOOLEAN", "TEXT"),
	}
	MySQL = Dialect{
		Name:    "mysql",
		Quote:   quoteWith("`", "`"),
		MapType: typeMap("BIGINT", "DOUBLE", "BOOLEAN", "TEXT"),
	}
	MSSQL = Dialect{
		Name:          "mssql",
		Quote:         quoteWith("[", "]"),
		MapType:       typeMap("BIGINT", "FLOAT", "BIT", "NVARCHAR(MAX)"),
		GuardObjectID: true,
	}
	SQLite = Dialect{
		Name:    "sqlite",
		Quote:   quoteWith(`"`, `"`),
		MapType: typeMap("INTEGER", "REAL", "INTEGER", "TEXT"),
	}
)

// FromSchema builds a definition with one nullable column per schema column.
func FromSchema(fqn string, schema table.Schema, d Dialect) TableDef {
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(schema))}
	for _, c := range schema {
		def.Columns = append(def.Columns, ColumnDef{
			Name:     c.Name,
			SQLType:  d.MapType(c.Type),
			Nullable: true,
		})
	}
	return def
}
