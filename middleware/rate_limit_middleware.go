package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/jinguan/jgrpc/message"
)

// RateLimitMiddleware rejects requests once the token bucket (rate r,
// capacity burst) is exhausted, protecting the dispatch pipeline from a
// runaway caller without touching TCP-level flow control.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.Fail(req.CorrelationID, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
