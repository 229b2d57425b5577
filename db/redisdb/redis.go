// Package redisdb stores each settlement session as a Redis hash.
package redisdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"billsplit/config"
	dbt "billsplit/db/db"
)

var _ dbt.SettlementDBWrapper = (*RedisSettlementDBWrapper)(nil)

type RedisSettlementDBWrapper struct {
	client *redis.Client
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr string) (*RedisSettlementDBWrapper, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return New(client), nil
}

func New(client *redis.Client) *RedisSettlementDBWrapper {
	return &RedisSettlementDBWrapper{client: client}
}

func sessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s:settlement:%s", config.AppName, sessionID)
}

func (r *RedisSettlementDBWrapper) SetEntries(ctx context.Context, sessionID uuid.UUID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(values))
	for name, value := range values {
		fields[name] = value
	}
	if err := r.client.HSet(ctx, sessionKey(sessionID), fields).Err(); err != nil {
		return fmt.Errorf("failed to write entries for session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisSettlementDBWrapper) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// DataLoaderGetEntries issues one HMGET per session in a single pipeline.
func (r *RedisSettlementDBWrapper) DataLoaderGetEntries(ctx context.Context, keys []dbt.EntryKey) (map[dbt.EntryKey]dbt.Entry, error) {
	names := make(map[uuid.UUID][]string)
	for _, k := range keys {
		names[k.SessionID] = append(names[k.SessionID], k.Name)
	}
	sessions := dbt.SessionIDs(keys)

	pipe := r.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(sessions))
	for i, s := range sessions {
		cmds[i] = pipe.HMGet(ctx, sessionKey(s), names[s]...)
	}
	if len(sessions) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to load entries: %w", err)
		}
	}

	found := make(map[dbt.EntryKey]dbt.Entry, len(keys))
	for i, s := range sessions {
		values, err := cmds[i].Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to load entries of session %s: %w", s, err)
		}
		for j, v := range values {
			if str, ok := v.(string); ok && j < len(names[s]) {
				found[dbt.EntryKey{SessionID: s, Name: names[s][j]}] = dbt.Entry{Value: str, Found: true}
			}
		}
	}
	return dbt.FillMissing(keys, found), nil
}

func (r *RedisSettlementDBWrapper) Close() error {
	return r.client.Close()
}
