package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store.
// Records live under "<prefix><key>" with TTL = remaining session lifetime.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "glucoview:session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(k string) string {
	return r.prefix + k
}

func (r *RedisRepository) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

func (r *RedisRepository) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), data, ttl).Err()
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
