package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
)

// Logging logs every request's method, duration, and error (if any) with
// the given logger, replacing the donor's bare log.Printf with zap's
// structured fields. The wrapped call still runs asynchronously: Logging
// returns as soon as next does, and logs once the resulting Future
// resolves.
func Logging(log *zap.SugaredLogger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *envelope.Request) *future.Future {
			start := time.Now()
			inner := next(ctx, req)

			outer := future.New()
			go func() {
				value, err := inner.Await(ctx)
				duration := time.Since(start)
				if err != nil {
					log.Warnw("request failed", "service", req.ServiceType, "method", req.MethodName, "duration", duration, "error", err)
					outer.Fail(err)
					return
				}
				log.Debugw("request completed", "service", req.ServiceType, "method", req.MethodName, "duration", duration)
				outer.Complete(value)
			}()
			return outer
		}
	}
}
