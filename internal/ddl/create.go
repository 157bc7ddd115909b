// Package ddl renders CREATE TABLE statements for the relational sink from
// a small dialect-aware model.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTable renders an idempotent CREATE TABLE for def in dialect d.
//
// Most dialects get CREATE TABLE IF NOT EXISTS. T-SQL has no such clause, so
// MSSQL wraps the statement in IF OBJECT_ID(N'...', N'U') IS NULL.
func BuildCreateTable(def TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(def.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(def.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(def.Columns)+1)
	var pks []string
	for _, c := range def.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if dflt := strings.TrimSpace(c.Default); dflt != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(dflt)
		}
		cols = append(cols, sb.String())
		if c.PrimaryKey {
			pks = append(pks, d.Quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	quoted := d.QuoteFQN(fqn)
	body := strings.Join(cols, ",\n  ")
	if d.GuardObjectID {
		return fmt.Sprintf(
			"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n  %s\n  );\nEND",
			strings.ReplaceAll(quoted, "'", "''"), quoted, body,
		), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", quoted, body), nil
}
