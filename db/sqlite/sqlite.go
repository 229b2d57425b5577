// Package sqlite stores settlement entries in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	dbt "billsplit/db/db"
)

var _ dbt.SettlementDBWrapper = (*SQLiteSettlementDBWrapper)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS settlement_entries (
    session_id TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (session_id, name)
);
`

type SQLiteSettlementDBWrapper struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and ensures the schema.
func New(dbPath string) (*SQLiteSettlementDBWrapper, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between the debounced writers of different sessions
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteSettlementDBWrapper{db: db}, nil
}

func (s *SQLiteSettlementDBWrapper) Close() error {
	return s.db.Close()
}

func (s *SQLiteSettlementDBWrapper) SetEntries(ctx context.Context, sessionID uuid.UUID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for name, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settlement_entries (session_id, name, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, sessionID.String(), name, value, now)
		if err != nil {
			return fmt.Errorf("failed to write entry %s for session %s: %w", name, sessionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entries for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteSettlementDBWrapper) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settlement_entries WHERE session_id = ?`, sessionID.String()); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteSettlementDBWrapper) DataLoaderGetEntries(ctx context.Context, keys []dbt.EntryKey) (map[dbt.EntryKey]dbt.Entry, error) {
	sessions := dbt.SessionIDs(keys)
	if len(sessions) == 0 {
		return map[dbt.EntryKey]dbt.Entry{}, nil
	}

	placeholders := make([]string, len(sessions))
	args := make([]interface{}, len(sessions))
	for i, id := range sessions {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	query := fmt.Sprintf(`SELECT session_id, name, value FROM settlement_entries WHERE session_id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	wanted := make(map[dbt.EntryKey]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	found := make(map[dbt.EntryKey]dbt.Entry, len(keys))
	for rows.Next() {
		var sessionStr, name, value string
		if err := rows.Scan(&sessionStr, &name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		sessionID, err := uuid.Parse(sessionStr)
		if err != nil {
			continue
		}
		key := dbt.EntryKey{SessionID: sessionID, Name: name}
		if wanted[key] {
			found[key] = dbt.Entry{Value: value, Found: true}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return dbt.FillMissing(keys, found), nil
}
