// Package cache keeps terminal payment records in Redis so status reads skip the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

const keyPrefix = "pix:status:"

// StatusCache is consulted only for terminal records; PENDING is never cached.
type StatusCache interface {
	Get(ctx context.Context, id string) (models.Transaction, bool, error)
	Put(ctx context.Context, t models.Transaction) error
	Invalidate(ctx context.Context, id string) error
}

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// Connect pings before handing the client out.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (c *Redis) Get(ctx context.Context, id string) (models.Transaction, bool, error) {
	b, err := c.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Transaction{}, false, nil
	}
	if err != nil {
		return models.Transaction{}, false, err
	}
	var t models.Transaction
	if err := json.Unmarshal(b, &t); err != nil {
		return models.Transaction{}, false, fmt.Errorf("decode cached %s: %w", id, err)
	}
	return t, true, nil
}

func (c *Redis) Put(ctx context.Context, t models.Transaction) error {
	if !t.State.Terminal() {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+t.ID, b, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, keyPrefix+id).Err()
}

// Nop is used when REDIS_ADDR is empty.
type Nop struct{}

func (Nop) Get(context.Context, string) (models.Transaction, bool, error) {
	return models.Transaction{}, false, nil
}
func (Nop) Put(context.Context, models.Transaction) error { return nil }
func (Nop) Invalidate(context.Context, string) error { return nil }
