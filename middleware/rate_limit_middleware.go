package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
)

// RateLimit throttles the wrapped handler with a token-bucket limiter,
// kept from the donor's RateLimitMiddleware essentially unchanged — only
// the request/response types differ.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) *future.Future {
			if !limiter.Allow() {
				return future.Errored(&bosonerr.TransportError{Cause: fmt.Errorf("%s: rate limit exceeded", req.ServiceType)})
			}
			return next(ctx, req)
		}
	}
}
