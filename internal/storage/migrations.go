package storage

import (
	"context"
	"fmt"
	"strings"
)

// schema usa {{timestamp}} como marcador do tipo de timestamp do dialeto
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		first_name  TEXT NOT NULL,
		last_name   TEXT NOT NULL,
		email       TEXT NOT NULL UNIQUE,
		role        TEXT NOT NULL,
		permissions TEXT NOT NULL DEFAULT '{}',
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  {{timestamp}} NOT NULL,
		updated_at  {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		isbn             TEXT NOT NULL UNIQUE,
		genre            TEXT NOT NULL,
		publication_year INTEGER NOT NULL DEFAULT 0,
		publisher        TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		available_copies INTEGER NOT NULL DEFAULT 1 CHECK (available_copies >= 0),
		is_available     BOOLEAN NOT NULL DEFAULT TRUE,
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_by       TEXT NOT NULL DEFAULT '',
		updated_by       TEXT NOT NULL DEFAULT '',
		created_at       {{timestamp}} NOT NULL,
		updated_at       {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		book_id       TEXT NOT NULL,
		user_snapshot TEXT NOT NULL,
		book_snapshot TEXT NOT NULL,
		requested_at  {{timestamp}} NOT NULL,
		due_at        {{timestamp}} NOT NULL,
		returned_at   {{timestamp}} NULL,
		status        TEXT NOT NULL,
		note          TEXT NOT NULL DEFAULT '',
		created_at    {{timestamp}} NOT NULL,
		updated_at    {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations (status)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_book_id ON reservations (book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_requested_at ON reservations (requested_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_due_at ON reservations (due_at)`,
	`CREATE INDEX IF NOT EXISTS idx_books_active ON books (active)`,
}

// Migrate cria as tabelas e índices que ainda não existirem
func (d *DB) Migrate(ctx context.Context) error {
	timestampType := "TIMESTAMPTZ"
	if d.driver == DriverSQLite {
		timestampType = "DATETIME"
	}

	for _, stmt := range schema {
		if _, err := d.x.ExecContext(ctx, strings.ReplaceAll(stmt, "{{timestamp}}", timestampType)); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}
