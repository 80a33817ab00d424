package middleware

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"pirate-rpc/rpcerr"
)

// ErrRateLimited is the handler failure returned for rejected calls.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware admits r calls per second with bursts of up to burst
// calls, using a token bucket.
func RateLimitMiddleware[N comparable](r float64, burst int) Middleware[N] {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc[N]) HandlerFunc[N] {
		return func(ctx context.Context, call *Call[N]) ([]byte, error) {
			if !limiter.Allow() {
				return nil, rpcerr.HandlerFailure(ErrRateLimited)
			}
			return next(ctx, call)
		}
	}
}
