package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in         string
		wantDriver Driver
		wantPrefix string
	}{
		{"postgres://u:p@localhost/repair", DriverPostgres, "postgres://u:p@localhost/repair"},
		{"postgresql://localhost/repair", DriverPostgres, "postgresql://localhost/repair"},
		{"sqlite:///var/lib/repair.db", DriverSQLite, "file:/var/lib/repair.db?"},
		{"sqlite://data/repair.db", DriverSQLite, "file:data/repair.db?"},
		{"repair.db", DriverSQLite, "file:repair.db?"},
		{"", DriverSQLite, "file:repairdesk.db?"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			driver, dsn := ParseDSN(tt.in)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Contains(t, dsn, tt.wantPrefix)
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM admins WHERE user_id = ? AND is_active = ?"
	assert.Equal(t, q, DriverSQLite.Rebind(q))
	assert.Equal(t,
		"SELECT id FROM admins WHERE user_id = $1 AND is_active = $2",
		DriverPostgres.Rebind(q))
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "repair.db")

	d, err := Connect(ctx, "sqlite://"+path)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, Migrate(ctx, d))
	// idempotent
	require.NoError(t, Migrate(ctx, d))

	for _, table := range []string{
		"users", "admins", "audit_log", "device_categories", "device_models",
		"services", "category_services", "prices", "device_images",
		"announcements", "articles",
	} {
		var name string
		err := d.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}
