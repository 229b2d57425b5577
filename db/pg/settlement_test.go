package pg

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbt "billsplit/db/db"
)

var testDB *gorm.DB
var settlementDB dbt.SettlementDBWrapper

// initTest connects to the database named by DATABASE_URL; the migrations must have run.
func initTest(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set")
	}
	var err error
	testDB, err = InitPostgresGORM(CreateDSN())
	require.NoError(t, err, "Failed to initialize test database")
	settlementDB = NewGORMSettlementDBWrapper(testDB)
}

func cleanupTest(sessions ...uuid.UUID) {
	for _, s := range sessions {
		testDB.Where("session_id = ?", s).Delete(&SettlementEntryModel{})
	}
	CloseGORM(testDB)
}

func TestSetEntries(t *testing.T) {
	initTest(t)
	session := uuid.New()
	defer cleanupTest(session)
	ctx := context.Background()

	err := settlementDB.SetEntries(ctx, session, map[string]string{"mode": "even", "peopleCount": "3"})
	require.NoError(t, err, "SetEntries should not return an error")

	err = settlementDB.SetEntries(ctx, session, map[string]string{"mode": "groups"})
	require.NoError(t, err, "SetEntries should upsert existing keys")

	mode := dbt.EntryKey{SessionID: session, Name: "mode"}
	people := dbt.EntryKey{SessionID: session, Name: "peopleCount"}
	missing := dbt.EntryKey{SessionID: session, Name: "groups"}
	got, err := settlementDB.DataLoaderGetEntries(ctx, []dbt.EntryKey{mode, people, missing})
	require.NoError(t, err)
	assert.Equal(t, dbt.Entry{Value: "groups", Found: true}, got[mode])
	assert.Equal(t, dbt.Entry{Value: "3", Found: true}, got[people])
	assert.False(t, got[missing].Found)
}

func TestDeleteSession(t *testing.T) {
	initTest(t)
	session := uuid.New()
	defer cleanupTest(session)
	ctx := context.Background()

	require.NoError(t, settlementDB.SetEntries(ctx, session, map[string]string{"mode": "even"}))
	require.NoError(t, settlementDB.DeleteSession(ctx, session))

	key := dbt.EntryKey{SessionID: session, Name: "mode"}
	got, err := settlementDB.DataLoaderGetEntries(ctx, []dbt.EntryKey{key})
	require.NoError(t, err)
	assert.False(t, got[key].Found)
}
