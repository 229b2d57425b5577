package pg

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbt "billsplit/db/db"
)

// GORMSettlementDBWrapper is a GORM-based PostgreSQL implementation of dbt.SettlementDBWrapper.
type GORMSettlementDBWrapper struct {
	db *gorm.DB
}

// NewGORMSettlementDBWrapper creates and returns a new instance of GORMSettlementDBWrapper.
func NewGORMSettlementDBWrapper(db *gorm.DB) dbt.SettlementDBWrapper {
	return &GORMSettlementDBWrapper{
		db: db,
	}
}

// SetEntries upserts the given entries of a session in one statement.
func (pgdb *GORMSettlementDBWrapper) SetEntries(ctx context.Context, sessionID uuid.UUID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	models := make([]SettlementEntryModel, 0, len(values))
	for _, name := range names {
		models = append(models, SettlementEntryModel{
			SessionID: sessionID,
			Name:      name,
			Value:     values[name],
		})
	}

	result := pgdb.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models)
	if result.Error != nil {
		return fmt.Errorf("failed to write entries for session %s: %w", sessionID, result.Error)
	}
	return nil
}

// DeleteSession removes every entry of a session.
func (pgdb *GORMSettlementDBWrapper) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	result := pgdb.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&SettlementEntryModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, result.Error)
	}
	return nil
}

// DataLoaderGetEntries loads the requested entries of any number of sessions in one query.
func (pgdb *GORMSettlementDBWrapper) DataLoaderGetEntries(ctx context.Context, keys []dbt.EntryKey) (map[dbt.EntryKey]dbt.Entry, error) {
	sessions := dbt.SessionIDs(keys)
	if len(sessions) == 0 {
		return map[dbt.EntryKey]dbt.Entry{}, nil
	}

	var models []SettlementEntryModel
	result := pgdb.db.WithContext(ctx).Where("session_id IN ?", sessions).Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load entries: %w", result.Error)
	}

	wanted := make(map[dbt.EntryKey]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}
	found := make(map[dbt.EntryKey]dbt.Entry, len(keys))
	for _, m := range models {
		key := dbt.EntryKey{SessionID: m.SessionID, Name: m.Name}
		if wanted[key] {
			found[key] = dbt.Entry{Value: m.Value, Found: true}
		}
	}
	return dbt.FillMissing(keys, found), nil
}

func (pgdb *GORMSettlementDBWrapper) Close() error {
	return CloseGORM(pgdb.db)
}
