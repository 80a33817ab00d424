package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	LabelMethod  = "method"
	LabelSuccess = "success"
)

var requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
	Namespace: "pirate",
	Subsystem: "rpc",
	Name:      "request_duration_seconds",
	Help:      "Dispatch duration in seconds.",
	Buckets:   stdprometheus.DefBuckets,
}, []string{LabelMethod, LabelSuccess})

// MetricsMiddleware records the dispatch duration of every call in the
// pirate_rpc_request_duration_seconds histogram.
func MetricsMiddleware[N comparable]() Middleware[N] {
	return instrument[N](requestDuration)
}

func instrument[N comparable](h metrics.Histogram) Middleware[N] {
	return func(next HandlerFunc[N]) HandlerFunc[N] {
		return func(ctx context.Context, call *Call[N]) (out []byte, err error) {
			defer func(begin time.Time) {
				h.With(
					LabelMethod, fmt.Sprint(call.Name),
					LabelSuccess, fmt.Sprint(err == nil),
				).Observe(time.Since(begin).Seconds())
			}(time.Now())
			return next(ctx, call)
		}
	}
}
