package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// RateLimiter implements domain.RateLimiter using a sliding-window approach
// backed by Redis sorted sets. Each request is recorded as a member scored by
// its arrival time in microseconds; entries older than the window are pruned
// on every check.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

func rateLimitKey(key string) string {
	return "goquant:ratelimit:" + key
}

// Allow checks whether a request for the given key is permitted under the
// sliding window rate limit. The request is recorded before counting, so
// denied requests still consume window capacity; clients that keep hammering
// a saturated key stay limited until they back off.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)
	member := uuid.NewString()

	var card *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, rateLimitKey(key), "0", cutoff)
		pipe.ZAdd(ctx, rateLimitKey(key), redis.Z{
			Score:  float64(now.UnixMicro()),
			Member: member,
		})
		card = pipe.ZCard(ctx, rateLimitKey(key))
		pipe.Expire(ctx, rateLimitKey(key), window+time.Second)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}

	return card.Val() <= int64(limit), nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
