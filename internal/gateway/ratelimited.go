package gateway

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/push-fanout/internal/ratelimit"
)

const defaultRateLimitBucket = "gateway"

// RateLimitedGateway waits on a shared limiter before every send.
type RateLimitedGateway struct {
	next    Gateway
	limiter ratelimit.RateLimiter
	bucket  string
}

func NewRateLimitedGateway(next Gateway, limiter ratelimit.RateLimiter) (*RateLimitedGateway, error) {
	if next == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	return &RateLimitedGateway{
		next:    next,
		limiter: limiter,
		bucket:  defaultRateLimitBucket,
	}, nil
}

func (g *RateLimitedGateway) Send(ctx context.Context, token string, payload *Payload) (string, error) {
	if err := g.limiter.Wait(ctx, g.bucket); err != nil {
		return "", &Error{Code: CodeUnavailable, Message: "rate limiter wait failed", Cause: err}
	}
	return g.next.Send(ctx, token, payload)
}
