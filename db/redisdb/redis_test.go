package redisdb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "billsplit/db/db"
)

func connectTest(t *testing.T) *RedisSettlementDBWrapper {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	store, err := Connect(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisSettlementStore(t *testing.T) {
	store := connectTest(t)
	ctx := context.Background()
	session := uuid.New()
	defer store.DeleteSession(ctx, session)

	require.NoError(t, store.SetEntries(ctx, session, map[string]string{"mode": "even", "peopleCount": "5"}))
	require.NoError(t, store.SetEntries(ctx, session, map[string]string{"mode": "groups"}))

	mode := dbt.EntryKey{SessionID: session, Name: "mode"}
	people := dbt.EntryKey{SessionID: session, Name: "peopleCount"}
	missing := dbt.EntryKey{SessionID: session, Name: "groups"}
	unknownSession := dbt.EntryKey{SessionID: uuid.New(), Name: "mode"}

	got, err := store.DataLoaderGetEntries(ctx, []dbt.EntryKey{mode, people, missing, unknownSession})
	require.NoError(t, err)
	assert.Equal(t, dbt.Entry{Value: "groups", Found: true}, got[mode])
	assert.Equal(t, dbt.Entry{Value: "5", Found: true}, got[people])
	assert.False(t, got[missing].Found)
	assert.False(t, got[unknownSession].Found)

	require.NoError(t, store.DeleteSession(ctx, session))
	got, err = store.DataLoaderGetEntries(ctx, []dbt.EntryKey{mode})
	require.NoError(t, err)
	assert.False(t, got[mode].Found)
}

func TestSessionKey(t *testing.T) {
	id := uuid.MustParse("7d3c1f7e-4a44-4a7b-9d0e-2b1f0f1d9a11")
	assert.Equal(t, "billsplit:settlement:7d3c1f7e-4a44-4a7b-9d0e-2b1f0f1d9a11", sessionKey(id))
}
