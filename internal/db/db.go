// Package db opens the relational database and applies the schema.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// DB is a database handle that knows its dialect.
type DB struct {
	*sql.DB
	Driver Driver
}

// Connect opens and pings the database named by databaseURL.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	driver, dsn := ParseDSN(databaseURL)
	sqldb, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time
		sqldb.SetMaxOpenConns(1)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: sqldb, Driver: driver}, nil
}

// Rebind rewrites placeholders for the connected dialect.
func (d *DB) Rebind(query string) string { return d.Driver.Rebind(query) }
