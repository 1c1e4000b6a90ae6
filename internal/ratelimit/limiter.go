// Package ratelimit defines the throttle the gateway client waits on before each send.
package ratelimit

import "context"

// RateLimiter hands out send slots per named bucket. Allow consumes a slot if one is free;
// Wait blocks until a slot is granted or ctx is done.
type RateLimiter interface {
	Allow(ctx context.Context, bucket string) (bool, error)
	Wait(ctx context.Context, bucket string) error
}
