// Package mysql implements storage.Repository for MySQL (including Amazon RDS
// for MySQL) with go-sql-driver/mysql and sqlx. Rows are appended with
// multi-row INSERT statements inside one transaction.
package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// maxPlaceholders is the server's prepared-statement parameter limit.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN string
	// Database overrides the schema selected by DSN when set.
	Database string
	Table    string
	Columns  []string
	// BatchRows caps rows per INSERT; 0 means 1000.
	BatchRows int
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db  *sqlx.DB
	cfg Config
}

// dsnWithDatabase applies cfg.Database and the driver options the
// repository relies on.
func dsnWithDatabase(cfg Config) (string, error) {
	dc, err := driver.ParseDSN(cfg.DSN)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	if cfg.Database != "" {
		dc.DBName = cfg.Database
	}
	dc.ParseTime = true
	if dc.Loc == nil {
		dc.Loc = time.UTC
	}
	return dc.FormatDSN(), nil
}

// NewRepository connects and returns a Repository plus its close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := dsnWithDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connect: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom appends rows in batches within a single transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	var total int64
	for _, chunk := range chunkRows(rows, batchRows(r.cfg.BatchRows, len(columns))) {
		query, args, err := buildInsert(r.cfg.Table, columns, chunk)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert into %s: %w", r.cfg.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return total, nil
}

// Exec runs sql, typically DDL.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

func batchRows(configured, ncols int) int {
	n := configured
	if n <= 0 {
		n = 1000
	}
	if limit := maxPlaceholders / ncols; n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

func chunkRows(rows [][]any, size int) [][][]any {
	out := make([][][]any, 0, (len(rows)+size-1)/size)
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

// buildInsert renders INSERT INTO t (cols) VALUES (?,...),(?,...) and
// flattens the arguments.
func buildInsert(table string, columns []string, rows [][]any) (string, []any, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ident(c)
	}
	group := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", fqn(table), strings.Join(quoted, ","))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(group)
		args = append(args, row...)
	}
	return sb.String(), args, nil
}

func ident(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" }

func fqn(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = ident(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}
