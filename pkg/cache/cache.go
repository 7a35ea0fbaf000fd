package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/farmconnect/pkg/metrics"
)

// Cache is a JSON value cache over Redis. A nil or empty Cache is valid and
// never hits, so callers do not branch on whether Redis is configured.
type Cache struct {
	rdb    *redis.Client
	prefix string
}

func Connect(ctx context.Context, addr, password string, db int, prefix string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return New(rdb, prefix), nil
}

func New(rdb *redis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix}
}

func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Get unmarshals the cached value into dest and reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		return false
	}
	val, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	err := c.rdb.Del(ctx, full...).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
