package mem

import (
	"context"
	"sync"

	"github.com/google/uuid"

	dbt "billsplit/db/db"
)

// inMemorySettlementDBWrapper keeps every session's entries in maps.
type inMemorySettlementDBWrapper struct {
	sessions map[uuid.UUID]map[string]string
	mu       sync.RWMutex
}

// NewInMemorySettlementDBWrapper creates an empty in-memory store.
func NewInMemorySettlementDBWrapper() dbt.SettlementDBWrapper {
	return &inMemorySettlementDBWrapper{
		sessions: make(map[uuid.UUID]map[string]string),
	}
}

func (db *inMemorySettlementDBWrapper) SetEntries(_ context.Context, sessionID uuid.UUID, values map[string]string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	entries, ok := db.sessions[sessionID]
	if !ok {
		entries = make(map[string]string, len(values))
		db.sessions[sessionID] = entries
	}
	for name, value := range values {
		entries[name] = value
	}
	return nil
}

func (db *inMemorySettlementDBWrapper) DeleteSession(_ context.Context, sessionID uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.sessions, sessionID)
	return nil
}

func (db *inMemorySettlementDBWrapper) DataLoaderGetEntries(_ context.Context, keys []dbt.EntryKey) (map[dbt.EntryKey]dbt.Entry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	found := make(map[dbt.EntryKey]dbt.Entry, len(keys))
	for _, k := range keys {
		if value, ok := db.sessions[k.SessionID][k.Name]; ok {
			found[k] = dbt.Entry{Value: value, Found: true}
		}
	}
	return dbt.FillMissing(keys, found), nil
}

func (db *inMemorySettlementDBWrapper) Close() error {
	return nil
}
