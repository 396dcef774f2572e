package redis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
	"firmdocs/internal/idempotency/redis"
	"firmdocs/internal/port"
)

// fakeRedis implements the two commands the store issues over an in-process
// map. Every other Cmdable method is left unimplemented.
type fakeRedis struct {
	goredis.Cmdable
	data    map[string][]byte
	ttls    map[string]time.Duration
	failing error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.failing != nil {
		return goredis.NewStringResult("", f.failing)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *goredis.BoolCmd {
	if f.failing != nil {
		return goredis.NewBoolResult(false, f.failing)
	}
	if _, ok := f.data[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.data[key] = value.([]byte)
	f.ttls[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

func TestStore_PutGet(t *testing.T) {
	fake := newFakeRedis()
	store := redis.NewStore(fake)
	ctx := context.Background()
	rec := port.IdempotencyRecord{DocumentID: uuid.New(), Version: 3, Fingerprint: "9f2c", StoredAt: time.Now().UTC().Truncate(time.Second)}

	_, err := store.Get(ctx, "t:a:upload:k1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.Put(ctx, "t:a:upload:k1", rec, time.Hour))
	require.NoError(t, store.Put(ctx, "t:a:upload:k1", port.IdempotencyRecord{Version: 9}, time.Hour))

	got, err := store.Get(ctx, "t:a:upload:k1")
	require.NoError(t, err)
	assert.Equal(t, rec.DocumentID, got.DocumentID)
	assert.Equal(t, 3, got.Version)
	assert.True(t, rec.StoredAt.Equal(got.StoredAt))

	assert.Equal(t, time.Hour, fake.ttls["firmdocs:idempotency:t:a:upload:k1"])
	var stored port.IdempotencyRecord
	require.NoError(t, json.Unmarshal(fake.data["firmdocs:idempotency:t:a:upload:k1"], &stored))
	assert.Equal(t, 3, stored.Version)
}

func TestStore_Errors(t *testing.T) {
	fake := newFakeRedis()
	store := redis.NewStore(fake)
	ctx := context.Background()

	fake.data["firmdocs:idempotency:corrupt"] = []byte("{not json")
	_, err := store.Get(ctx, "corrupt")
	assert.ErrorContains(t, err, "decode")

	fake.failing = errors.New("connection refused")
	_, err = store.Get(ctx, "k")
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Error(t, store.Put(ctx, "k", port.IdempotencyRecord{}, time.Minute))
}
