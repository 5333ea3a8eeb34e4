package middleware

import (
	"context"
	"time"

	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
)

// Timeout bounds how long the wrapped handler may run, failing the
// returned Future with a TimeoutError if it doesn't resolve in time.
// Adapted from the donor's TimeOutMiddleware.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) *future.Future {
			deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
			inner := next(deadlineCtx, req)

			outer := future.New()
			go func() {
				defer cancel()
				select {
				case <-inner.Done():
					value, err := inner.Await(context.Background())
					if err != nil {
						outer.Fail(err)
						return
					}
					outer.Complete(value)
				case <-deadlineCtx.Done():
					outer.Fail(&bosonerr.TimeoutError{RequestID: req.ID})
				}
			}()
			return outer
		}
	}
}
