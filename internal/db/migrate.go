package db

import (
	"context"
	"fmt"
	"strings"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically on
// both dialects; see engine.formatTime.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_admins_user_id ON admins(user_id)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		admin_id TEXT NOT NULL REFERENCES admins(id),
		action TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id TEXT NULL,
		old_data TEXT NULL,
		new_data TEXT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_admin_id ON audit_log(admin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)`,
	`CREATE TABLE IF NOT EXISTS device_categories (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS device_models (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES device_categories(id),
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_models_category_id ON device_models(category_id)`,
	`CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS category_services (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL REFERENCES device_categories(id),
		service_id TEXT NOT NULL REFERENCES services(id),
		UNIQUE(category_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS prices (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL REFERENCES device_models(id),
		service_id TEXT NOT NULL REFERENCES services(id),
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		discount TEXT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(model_id, service_id)
	)`,
	`CREATE TABLE IF NOT EXISTS device_images (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL REFERENCES device_models(id),
		url TEXT NOT NULL,
		alt TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		starts_at TEXT NULL,
		ends_at TEXT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		body TEXT NOT NULL,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		published_at TEXT NOT NULL
	)`,
}

// Migrate creates every table the services need. It is idempotent.
func Migrate(ctx context.Context, d *DB) error {
	if d.Driver == DriverSQLite {
		if _, err := d.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable wal: %w", err)
		}
	}
	for _, stmt := range schema {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
