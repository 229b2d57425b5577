package pg

import (
	"time"

	"github.com/google/uuid"
)

type SettlementEntryModel struct {
	SessionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:64;primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for SettlementEntryModel.
func (SettlementEntryModel) TableName() string {
	return "settlement_entries"
}
