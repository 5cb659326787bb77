package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		birth_date  DATE NOT NULL,
		story       VARCHAR(200),
		status      TEXT NOT NULL,
		amount      BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id                  UUID PRIMARY KEY,
		order_id            UUID NOT NULL REFERENCES orders(id),
		provider            TEXT NOT NULL,
		provider_payment_id TEXT,
		external_order_id   TEXT NOT NULL UNIQUE,
		amount              BIGINT NOT NULL,
		status              TEXT NOT NULL,
		paid_at             TIMESTAMPTZ,
		raw_response        JSONB,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS payments_order_id_idx ON payments (order_id)`,
	`CREATE INDEX IF NOT EXISTS payments_pending_idx ON payments (created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS fortunes (
		id          UUID PRIMARY KEY,
		order_id    UUID NOT NULL UNIQUE REFERENCES orders(id),
		content     JSONB NOT NULL,
		model       TEXT NOT NULL,
		prompt_hash TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
