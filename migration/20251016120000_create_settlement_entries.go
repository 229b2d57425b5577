package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSettlementEntries, downCreateSettlementEntries)
}

func upCreateSettlementEntries(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS billsplit;`)
	if err != nil {
		return err
	}

	// one row per persisted key of a browsing session
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE billsplit.settlement_entries (
			session_id UUID NOT NULL,
			name VARCHAR(64) NOT NULL,
			value TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, name)
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		CREATE INDEX idx_settlement_entries_updated_at ON billsplit.settlement_entries (updated_at);
	`)
	return err
}

func downCreateSettlementEntries(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS billsplit.settlement_entries;`)
	return err
}
