package localauth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-storefront-session/pkg/helpers"
)

// KeyValue is the short-lived state the directory keeps: attempt counters,
// send throttles and verification tokens.
type KeyValue interface {
	// Hit counts one event in a fixed window and returns the running total.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
	// Acquire sets key only if absent and reports whether it did.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Take returns and deletes key; "" when missing.
	Take(ctx context.Context, key string) (string, error)
}

type RedisKV struct {
	rdb *redis.Client
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (k *RedisKV) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	return helpers.RedisIncrWithExpiry(ctx, k.rdb, key, window)
}

func (k *RedisKV) Reset(ctx context.Context, key string) error {
	return helpers.RedisDel(ctx, k.rdb, key)
}

func (k *RedisKV) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return k.rdb.SetNX(ctx, key, "1", ttl).Result()
}

func (k *RedisKV) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return k.rdb.Set(ctx, key, value, ttl).Err()
}

func (k *RedisKV) Take(ctx context.Context, key string) (string, error) {
	v, err := k.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func keyAttempts(email string) string { return "auth:attempts:" + email }
func keySendThrottle(uid string) string { return "auth:verify:sent:" + uid }
func keyVerifyToken(token string) string { return "auth:verify:token:" + token }
