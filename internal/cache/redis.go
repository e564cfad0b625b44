package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-scorer/internal/resilience"
)

const defaultKeyPrefix = "esg:"

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(addr, password string, db int, prefix string) (*Redis, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := resilience.Retry(ctx, resilience.ConnectBackoff(), "redis ping", ping); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "cache: connect redis %s", addr)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return eris.Wrapf(r.client.Set(ctx, r.prefix+key, value, ttl).Err(), "cache: redis set %s", key)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return eris.Wrapf(r.client.Del(ctx, r.prefix+key).Err(), "cache: redis del %s", key)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
