// Package all registers every built-in storage backend with the storage
// factory. Import it for side effects:
//
//	import _ "creditetl/internal/storage/all"
//
// After that, storage.New accepts the kinds "postgres", "mysql", "mssql" and
// "sqlite", and storage.EnsureTable knows their DDL dialects.
package all

import (
	_ "creditetl/internal/storage/mssql"
	_ "creditetl/internal/storage/mysql"
	_ "creditetl/internal/storage/postgres"
	_ "creditetl/internal/storage/sqlite"
)
