package repository

import (
	"context"
	"fmt"
)

const (
	tableTrades    = "trades"
	tableLegs      = "trade_legs"
	tableDocuments = "documents"
)

// utcLayout is RFC 3339 with a fixed-width fraction. Stored UTC values and
// range bounds share it so that text order is time order.
const utcLayout = "2006-01-02T15:04:05.000000000Z07:00"

// The DDL sticks to types both Postgres and SQLite accept. Timestamps are
// RFC 3339 text; received_utc and processed_at are always UTC in utcLayout.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
	order_id      TEXT NOT NULL PRIMARY KEY,
	date_received TEXT NOT NULL,
	received_utc  TEXT NOT NULL,
	order_type    TEXT NOT NULL,
	source_path   TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS trade_legs (
	order_id    TEXT NOT NULL REFERENCES trades (order_id) ON DELETE CASCADE,
	leg_index   INTEGER NOT NULL,
	action      TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	symbol      TEXT NOT NULL,
	expiration  TEXT,
	option_type TEXT,
	strike      TEXT,
	fill_price  TEXT NOT NULL,
	fill_time   TEXT NOT NULL,
	PRIMARY KEY (order_id, leg_index)
)`,
	`CREATE TABLE IF NOT EXISTS documents (
	id            TEXT NOT NULL PRIMARY KEY,
	content_hash  TEXT NOT NULL UNIQUE,
	source_path   TEXT NOT NULL,
	filename      TEXT NOT NULL,
	file_ext      TEXT NOT NULL,
	file_size     BIGINT NOT NULL,
	status        TEXT NOT NULL,
	order_id      TEXT,
	error_message TEXT,
	skipped_legs  INTEGER NOT NULL DEFAULT 0,
	run_id        TEXT NOT NULL,
	processed_at  TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS trades_received_utc_idx ON trades (received_utc)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := db.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			db.logger.Error("migration failed", "statement", stmt, "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.logger.Info("database schema ready", "dialect", db.dialect)
	return nil
}
