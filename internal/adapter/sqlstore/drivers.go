package sqlstore

import (
	// Register the database/sql drivers selectable through DATABASE_DRIVER.
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" (PostgreSQL)
	_ "modernc.org/sqlite"             // "sqlite", CGO-free
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)
