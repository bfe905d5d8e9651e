package transport

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimit returns middleware that throttles outgoing attempts with a
// token bucket. Each attempt, including retries, takes one token. A nil
// limiter disables throttling.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next Transport) Transport {
		if limiter == nil {
			return next
		}
		return Func(func(ctx context.Context, req *Request) (*Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// The wait would outlast the context deadline.
				return nil, fmt.Errorf("client rate limit: %w", context.DeadlineExceeded)
			}
			return next.Do(ctx, req)
		})
	}
}

// NewLimiter creates a token bucket allowing rps requests per second with
// the given burst. It returns nil when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
