package botstate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "botstate:"

// RedisStore keeps bot states in Redis so multiple router instances share
// one view of conversation ownership. No TTL: a state lives until escalation
// flips it or a reset removes it.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(tenantID, key string) string {
	return redisKeyPrefix + tenantID + ":" + key
}

// Get returns the stored state, or the active default for unknown keys.
func (s *RedisStore) Get(ctx context.Context, tenantID, key string) (State, error) {
	raw, err := s.client.Get(ctx, redisKey(tenantID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return defaultState(tenantID, key), nil
		}
		return defaultState(tenantID, key), err
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return defaultState(tenantID, key), err
	}
	return state, nil
}

// SetActive writes the flag, last write wins.
func (s *RedisStore) SetActive(ctx context.Context, tenantID, key string, active bool, meta Metadata) error {
	state := State{
		TenantID:  tenantID,
		Key:       key,
		Active:    active,
		Reason:    meta.Reason,
		Source:    meta.Source,
		UpdatedAt: time.Now(),
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(tenantID, key), raw, 0).Err()
}

// Reset removes the override so the key falls back to default-active.
func (s *RedisStore) Reset(ctx context.Context, tenantID, key string) error {
	return s.client.Del(ctx, redisKey(tenantID, key)).Err()
}
