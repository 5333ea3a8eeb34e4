// Package router implements the ResponseRouter: it correlates asynchronous
// Response envelopes with the Future each outstanding Request is waiting on.
// Grounded on ServiceResponseRouter.java's open/complete/cancel/reapExpired
// contract, implemented with the donor's sync.Map + LoadAndDelete idiom for
// atomic completion instead of ServiceResponseRouter's synchronized
// ConcurrentHashMap.
package router

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
)

type pendingEntry struct {
	future    *future.Future
	expiresAt time.Time
}

// Router tracks every in-flight Request keyed by its ID until a matching
// Response arrives, the caller cancels it, or it expires.
type Router struct {
	pending sync.Map // map[string]*pendingEntry
	log     *zap.SugaredLogger
}

// New returns an empty Router. Pass nil for log to use zap's default
// production logger.
func New(log *zap.SugaredLogger) *Router {
	if log == nil {
		l, _ := zap.NewProduction()
		log = l.Sugar()
	}
	return &Router{log: log}
}

// Open registers a new pending request and returns the Future its
// eventual Response will resolve. It must be called before the request is
// handed to a dispatcher — completing registration first avoids the race
// where a very fast reply arrives before the router knows to expect it.
func (r *Router) Open(req *envelope.Request) *future.Future {
	f := future.New()
	r.pending.Store(req.ID, &pendingEntry{future: f, expiresAt: req.ExpiresAt})
	return f
}

// Complete resolves the Future for resp.ID with the response's result or
// error, exactly once. It reports whether a pending request was actually
// found — a false return typically means the request already expired and
// was reaped, or the response is a duplicate/stray. Matches on ID rather
// than Correlation, mirroring completeRoute's use of response.getId() —
// Correlation only carries the reply address a response travelled back on,
// not the id of the request it answers.
func (r *Router) Complete(resp *envelope.Response) bool {
	value, ok := r.pending.LoadAndDelete(resp.ID)
	if !ok {
		r.log.Warnw("no pending request for response", "id", resp.ID)
		return false
	}

	entry := value.(*pendingEntry)
	if resp.Err != nil {
		entry.future.Fail(&bosonerr.InvocationError{
			Service: resp.ServiceInfo,
			Cause:   resp.Err.Message,
		})
	} else {
		entry.future.Complete(resp.Result)
	}
	return true
}

// Cancel removes a pending request without resolving its Future, used when
// a request is abandoned before it reaches the broker (transport/broker's
// Dispatch calls it when encoding or publishing fails). Returns true if a
// pending request was actually present.
func (r *Router) Cancel(requestID string) bool {
	_, ok := r.pending.LoadAndDelete(requestID)
	return ok
}

// ReapExpired scans every pending request and fails the ones whose
// deadline has passed, removing them from the table. It's meant to be
// called periodically by a background goroutine; see transport/broker's
// reaper for the grounding use case (the original's dispatcher runs this
// on its own daemon thread every five seconds).
func (r *Router) ReapExpired(now time.Time) int {
	reaped := 0
	r.pending.Range(func(key, value any) bool {
		entry := value.(*pendingEntry)
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			return true
		}

		// LoadAndDelete here (rather than plain Delete) is what keeps this
		// safe against a concurrent Complete() call racing in for the same
		// key — whichever of the two wins the atomic removal is the one
		// that gets to resolve the future.
		if removed, ok := r.pending.LoadAndDelete(key); ok {
			removed.(*pendingEntry).future.Fail(&bosonerr.TimeoutError{RequestID: key.(string)})
			reaped++
		}
		return true
	})
	return reaped
}

// Pending reports how many requests are currently awaiting a response.
func (r *Router) Pending() int {
	count := 0
	r.pending.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
