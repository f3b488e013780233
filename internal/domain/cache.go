package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting for the API surface. Allow
// reports whether the caller identified by key may proceed given at most
// limit events per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
