package ddl

import (
	"strings"
	"testing"

	"creditetl/internal/table"
)

// TestBuildCreateTable covers validation errors and the rendering of each
// dialect.
func TestBuildCreateTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		dialect     Dialect
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			dialect:     Postgres,
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns",
			def:         TableDef{FQN: "t"},
			dialect:     Postgres,
			errContains: "at least one column is required",
		},
		{
			name:        "empty column name",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{SQLType: "INT"}}},
			dialect:     Postgres,
			errContains: "column with empty name",
		},
		{
			name:        "missing type",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			dialect:     Postgres,
			errContains: "missing SQLType",
		},
		{
			name: "postgres with primary key and default",
			def: TableDef{FQN: "retail_db.t", Columns: []ColumnDef{
				{Name: "id", SQLType: "BIGINT", PrimaryKey: true},
				{Name: "loaded_at", SQLType: "TIMESTAMPTZ", Nullable: true, Default: "now()"},
			}},
			dialect: Postgres,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"retail_db\".\"t\" (\n  \"id\" BIGINT NOT NULL,\n  \"loaded_at\" TIMESTAMPTZ DEFAULT now(),\n  PRIMARY KEY (\"id\")\n);",
		},
		{
			name:    "mysql backticks",
			def:     TableDef{FQN: "retail_db.credit_risk_clean", Columns: []ColumnDef{{Name: "loan_status", SQLType: "TEXT", Nullable: true}}},
			dialect: MySQL,
			wantSQL: "CREATE TABLE IF NOT EXISTS `retail_db`.`credit_risk_clean` (\n  `loan_status` TEXT\n);",
		},
		{
			name:    "mssql guard",
			def:     TableDef{FQN: "dbo.t", Columns: []ColumnDef{{Name: "a", SQLType: "BIGINT", Nullable: true}}},
			dialect: MSSQL,
			wantSQL: "IF OBJECT_ID(N'[dbo].[t]', N'U') IS NULL\nBEGIN\n  CREATE TABLE [dbo].[t] (\n  [a] BIGINT\n  );\nEND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildCreateTable(tt.def, tt.dialect)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("err = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildCreateTable: %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tt.wantSQL)
			}
		})
	}
}

func TestQuoteEscapes(t *testing.T) {
	if got := Postgres.Quote(`a"b`); got != `"a""b"` {
		t.Fatalf("postgres quote = %s", got)
	}
	if got := MSSQL.Quote("a]b"); got != "[a]]b]" {
		t.Fatalf("mssql quote = %s", got)
	}
	if got := MySQL.Quote("a`b"); got != "`a``b`" {
		t.Fatalf("mysql quote = %s", got)
	}
}

func TestFromSchema(t *testing.T) {
	schema := table.Schema{
		{Name: "person_age", Type: "bigint"},
		{Name: "loan_int_rate", Type: "double"},
		{Name: "flag", Type: "boolean"},
		{Name: "loan_status", Type: "string"},
	}
	tests := []struct {
		d    Dialect
		want []string
	}{
		{Postgres, []string{"BIGINT", "DOUBLE PRECISION", "BOOLEAN", "TEXT"}},
		{MySQL, []string{"BIGINT", "DOUBLE", "BOOLEAN", "TEXT"}},
		{MSSQL, []string{"BIGINT", "FLOAT", "BIT", "NVARCHAR(MAX)"}},
		{SQLite, []string{"INTEGER", "REAL", "INTEGER", "TEXT"}},
	}
	for _, tc := range tests {
		def := FromSchema("retail_db.credit_risk_clean", schema, tc.d)
		if def.FQN != "retail_db.credit_risk_clean" || len(def.Columns) != len(schema) {
			t.Fatalf("%s: def = %+v", tc.d.Name, def)
		}
		for i, c := range def.Columns {
			if c.Name != schema[i].Name || c.SQLType != tc.want[i] || !c.Nullable {
				t.Fatalf("%s: column %d = %+v, want type %s", tc.d.Name, i, c, tc.want[i])
			}
		}
	}
}
