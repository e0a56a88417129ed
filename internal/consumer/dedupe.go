package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Claimer records that a key has been handled.
type Claimer interface {
	// Claim reports true when key was not claimed before.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// redisClient is the subset of redis.Cmdable the claimer needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisClaimer implements Claimer with SETNX.
type RedisClaimer struct {
	client redisClient
	prefix string
}

// NewRedisClaimer constructs a RedisClaimer. Keys are stored under prefix.
func NewRedisClaimer(client redisClient, prefix string) *RedisClaimer {
	return &RedisClaimer{client: client, prefix: prefix}
}

// Claim implements Claimer.
func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release implements Claimer.
func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Deduplicate wraps next so each topic/partition/offset is handled once within
// ttl. A failed handler releases its claim so redelivery can retry it.
func Deduplicate(next Handler, claimer Claimer, ttl time.Duration) Handler {
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		key := fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)

		fresh, err := claimer.Claim(ctx, key, ttl)
		if err != nil {
			return err
		}
		if !fresh {
			recordDuplicate(msg)
			zerolog.Ctx(ctx).Debug().Str("dedupe_key", key).Msg("duplicate delivery skipped")
			return nil
		}

		if err := next.Handle(ctx, msg); err != nil {
			if releaseErr := claimer.Release(ctx, key); releaseErr != nil {
				zerolog.Ctx(ctx).Warn().Err(releaseErr).Str("dedupe_key", key).Msg("release claim failed")
			}
			return err
		}
		return nil
	})
}
