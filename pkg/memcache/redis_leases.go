package mem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// compare-and-delete so an expired holder cannot drop a newer lease
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeases shares leases across instances through SET NX PX.
type RedisLeases struct {
	client *redis.Client
	prefix string
}

func NewRedisLeases(client *redis.Client, prefix string) *RedisLeases {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "lease"
	}
	return &RedisLeases{client: client, prefix: prefix}
}

func (r *RedisLeases) key(k string) string {
	return fmt.Sprintf("%s:%s", r.prefix, k)
}

func (r *RedisLeases) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis acquire %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisLeases) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(key)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}
