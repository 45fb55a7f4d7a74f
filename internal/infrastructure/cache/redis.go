package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient opens a client and pings it so a misconfigured address fails at startup.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisCounters stores integer counters as plain string keys.
type RedisCounters struct {
	rdb *redis.Client
}

func NewRedisCounters(rdb *redis.Client) *RedisCounters {
	return &RedisCounters{rdb: rdb}
}

// versionTTL bounds how long an idle generation key lingers.
const versionTTL = 24 * time.Hour

func versionKey(key string) string { return key + ":gen" }

// Fill returns the counter at key, computing it with load on a miss. The loaded value is
// written only if no Invalidate bumped the key's generation while load ran; the
// generation key is WATCHed for the whole read-load-write sequence.
func (c *RedisCounters) Fill(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (int, error)) (int, error) {
	var n int
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, key).Int()
		switch {
		case err == nil:
			n = v
			return nil
		case !errors.Is(err, redis.Nil):
			return fmt.Errorf("counter %s: %w", key, err)
		}
		if n, err = load(ctx); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, n, ttl)
			return nil
		})
		return err
	}, versionKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		// Invalidated mid-load: the value is not cached but is still this caller's answer.
		return n, nil
	}
	return n, err
}

// Invalidate drops the counter and bumps its generation so in-flight fills are discarded.
func (c *RedisCounters) Invalidate(ctx context.Context, key string) error {
	gen := versionKey(key)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, gen)
		p.Expire(ctx, gen, versionTTL)
		p.Del(ctx, key)
		return nil
	})
	return err
}
