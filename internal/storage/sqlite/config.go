package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a file path or URI, e.g. "clean.db" or "file:clean.db?_pragma=busy_timeout(5000)".
	DSN string

	// Table is the target table. SQLite has no databases in the server sense,
	// so storage.Config.Database is ignored.
	Table string

	Columns []string
}
