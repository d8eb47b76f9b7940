package db

import (
	"fmt"
	"strings"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "pgx"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// ParseDSN maps a DATABASE_URL to a driver and a DSN it accepts.
// Accepted forms: postgres://..., postgresql://..., sqlite:///abs/path.db,
// sqlite://rel/path.db and a bare file path (SQLite).
func ParseDSN(databaseURL string) (Driver, string) {
	switch {
	case databaseURL == "":
		return DriverSQLite, sqliteDSN("repairdesk.db")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		// sqlite:///abs keeps its leading slash
		return DriverSQLite, sqliteDSN(path)
	default:
		return DriverSQLite, sqliteDSN(databaseURL)
	}
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=rwc&%s", path, sqlitePragmas)
}
