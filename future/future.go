// Package future implements the asynchronous completion primitive every
// generated service method returns. It plays the role Java's
// CompletableFuture plays in the original source, built the way the donor
// repo routes responses back to callers: one channel per pending call,
// closed exactly once when the call completes.
package future

import (
	"context"
	"sync"

	"github.com/rob-signorelli/boson/bosonerr"
)

// Future represents the eventual result of one invocation. It is safe to
// call Complete/Fail exactly once; later calls are no-ops. Await may be
// called from any number of goroutines.
type Future struct {
	mu     sync.Mutex
	done   chan struct{}
	result any
	err    error
	fired  bool
}

// New returns an unresolved Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Of returns a Future that is already resolved with value, mirroring the
// original source's Futures.of(value) helper.
func Of(value any) *Future {
	f := New()
	f.Complete(value)
	return f
}

// Errored returns a Future that is already resolved with err, mirroring the
// original source's Futures.error(cause) helper.
func Errored(err error) *Future {
	f := New()
	f.Fail(err)
	return f
}

// Complete resolves the future successfully. Only the first call (whether
// Complete or Fail) has any effect.
func (f *Future) Complete(value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fired {
		return
	}
	f.fired = true
	f.result = value
	close(f.done)
}

// Fail resolves the future with an error. Only the first call (whether
// Complete or Fail) has any effect.
func (f *Future) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fired {
		return
	}
	f.fired = true
	f.err = err
	close(f.done)
}

// Await blocks until the future resolves or ctx is cancelled, whichever
// comes first. A context cancellation does not resolve the future itself —
// it only unblocks this particular caller.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, f.err
	case <-ctx.Done():
		return nil, &bosonerr.TimeoutError{}
	}
}

// Done returns a channel that closes once the future resolves, for callers
// that want to select on it alongside other channels instead of calling
// Await.
func (f *Future) Done() <-chan struct{} {
	return f.done
}
