package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "billsplit/db/db"
)

func TestSQLiteSettlementStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	store, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	session := uuid.New()
	mode := dbt.EntryKey{SessionID: session, Name: "mode"}
	people := dbt.EntryKey{SessionID: session, Name: "peopleCount"}
	groups := dbt.EntryKey{SessionID: session, Name: "groups"}

	t.Run("missing keys are not found", func(t *testing.T) {
		got, err := store.DataLoaderGetEntries(ctx, []dbt.EntryKey{mode})
		require.NoError(t, err)
		assert.False(t, got[mode].Found)
	})

	t.Run("upsert keeps latest value", func(t *testing.T) {
		require.NoError(t, store.SetEntries(ctx, session, map[string]string{"mode": "even", "peopleCount": "4"}))
		require.NoError(t, store.SetEntries(ctx, session, map[string]string{"mode": "groups"}))

		got, err := store.DataLoaderGetEntries(ctx, []dbt.EntryKey{mode, people, groups})
		require.NoError(t, err)
		assert.Equal(t, dbt.Entry{Value: "groups", Found: true}, got[mode])
		assert.Equal(t, dbt.Entry{Value: "4", Found: true}, got[people])
		assert.False(t, got[groups].Found)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		other := uuid.New()
		require.NoError(t, store.SetEntries(ctx, other, map[string]string{"mode": "immediate"}))
		otherMode := dbt.EntryKey{SessionID: other, Name: "mode"}

		got, err := store.DataLoaderGetEntries(ctx, []dbt.EntryKey{mode, otherMode})
		require.NoError(t, err)
		assert.Equal(t, "groups", got[mode].Value)
		assert.Equal(t, "immediate", got[otherMode].Value)
	})

	t.Run("delete session", func(t *testing.T) {
		require.NoError(t, store.DeleteSession(ctx, session))
		got, err := store.DataLoaderGetEntries(ctx, []dbt.EntryKey{mode, people})
		require.NoError(t, err)
		assert.False(t, got[mode].Found)
		assert.False(t, got[people].Found)
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		s2 := uuid.New()
		require.NoError(t, store.SetEntries(ctx, s2, map[string]string{"paidGroupIds": "[]"}))
		require.NoError(t, store.Close())

		reopened, err := New(dbPath)
		require.NoError(t, err)
		store = reopened

		key := dbt.EntryKey{SessionID: s2, Name: "paidGroupIds"}
		got, err := reopened.DataLoaderGetEntries(ctx, []dbt.EntryKey{key})
		require.NoError(t, err)
		assert.Equal(t, "[]", got[key].Value)
	})
}
