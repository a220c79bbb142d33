package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"gorm.io/microorm/schema"
)

// DefaultRedisPrefix prefixes the keys written by RedisStore
const DefaultRedisPrefix = "microorm:fields:"

// RedisStore shares field descriptors between processes through redis. Values
// are JSON encoded; Go types travel by their registered name.
type RedisStore struct {
	Client redis.Cmdable
	Prefix string
	TTL    time.Duration
}

// NewRedisStore returns a store over client, ttl 0 keeps entries forever
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, Prefix: DefaultRedisPrefix, TTL: ttl}
}

// NewRedisStoreFromOptions connects a new client
func NewRedisStoreFromOptions(opt *redis.Options, ttl time.Duration) *RedisStore {
	return NewRedisStore(redis.NewClient(opt), ttl)
}

func (s *RedisStore) Get(ctx context.Context, key string) (schema.DbFields, bool, error) {
	data, err := s.Client.Get(ctx, s.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var fields schema.DbFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false, err
	}
	return fields, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, fields schema.DbFields) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, s.Prefix+key, data, s.TTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.Prefix+key).Err()
}
