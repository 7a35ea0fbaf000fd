package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisMaxRetries = 5

var ErrContention = errors.New("cart: too much contention")

// RedisStore keeps one JSON document per customer and guards updates with
// WATCH/MULTI.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a store; ttl <= 0 keeps carts forever.
func NewRedisStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl < 0 {
		ttl = 0
	}
	if prefix == "" {
		prefix = "cart:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id uuid.UUID) string { return s.prefix + id.String() }

func (s *RedisStore) Load(ctx context.Context, customerID uuid.UUID) (*Cart, error) {
	return s.read(ctx, s.rdb, customerID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, g getter, customerID uuid.UUID) (*Cart, error) {
	raw, err := g.Get(ctx, s.key(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(customerID), nil
	}
	if err != nil {
		return nil, err
	}
	c := New(customerID)
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c.CustomerID = customerID
	return c, nil
}

func (s *RedisStore) Update(ctx context.Context, customerID uuid.UUID, fn func(*Cart) error) (*Cart, error) {
	key := s.key(customerID)
	var out *Cart

	txf := func(tx *redis.Tx) error {
		c, err := s.read(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		var payload []byte
		if !c.Empty() {
			if payload, err = json.Marshal(c); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if payload == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			out = c
		}
		return err
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrContention
}

func (s *RedisStore) Delete(ctx context.Context, customerID uuid.UUID) error {
	return s.rdb.Del(ctx, s.key(customerID)).Err()
}
