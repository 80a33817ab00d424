package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LoggingMiddleware logs every call with its duration and, if any, its error.
func LoggingMiddleware[N comparable](logger log.Logger) Middleware[N] {
	return func(next HandlerFunc[N]) HandlerFunc[N] {
		return func(ctx context.Context, call *Call[N]) ([]byte, error) {
			start := time.Now()
			out, err := next(ctx, call)
			if err != nil {
				level.Warn(logger).Log("method", fmt.Sprint(call.Name), "took", time.Since(start), "err", err)
			} else {
				level.Debug(logger).Log("method", fmt.Sprint(call.Name), "took", time.Since(start), "bytes", len(out))
			}
			return out, err
		}
	}
}
