// Package redis keeps completed idempotency tokens in Redis so replays are
// recognised across server instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"firmdocs/internal/config"
	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

const keyPrefix = "firmdocs:idempotency:"

type store struct {
	client redis.Cmdable
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewStore creates an IdempotencyStore over client.
func NewStore(client redis.Cmdable) port.IdempotencyStore {
	return &store{client: client}
}

func (s *store) Get(ctx context.Context, key string) (*port.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("idempotency.Get: %w", err)
	}
	var rec port.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("idempotency.Get decode: %w", err)
	}
	return &rec, nil
}

func (s *store) Put(ctx context.Context, key string, rec port.IdempotencyRecord, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("idempotency.Put encode: %w", err)
	}
	// SETNX keeps the first completion.
	if err := s.client.SetNX(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency.Put: %w", err)
	}
	return nil
}
