package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisBackend struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend stores documents under "<prefix>snapshot:<name>".
// A zero ttl keeps them forever.
func NewRedisBackend(rdb *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend) key(name string) string {
	return fmt.Sprintf("%ssnapshot:%s", b.prefix, name)
}

func (b *RedisBackend) Save(ctx context.Context, name string, data []byte) error {
	return b.rdb.Set(ctx, b.key(name), data, b.ttl).Err()
}

func (b *RedisBackend) Load(ctx context.Context, name string) ([]byte, bool, error) {
	val, err := b.rdb.Get(ctx, b.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
