package db

import (
	"context"

	"github.com/google/uuid"
)

// SettlementDBWrapper is the durable key/value store behind settlement persistence.
// Every session owns an independent set of string-keyed entries.
type SettlementDBWrapper interface {
	// Write
	SetEntries(ctx context.Context, sessionID uuid.UUID, values map[string]string) error
	// Delete
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
	// Data Loader
	DataLoaderGetEntries(ctx context.Context, keys []EntryKey) (map[EntryKey]Entry, error)
	// Close releases the underlying connection.
	Close() error
}
